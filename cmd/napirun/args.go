package main

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// parseArg reads a command line argument as JSON when it is valid JSON and
// as a plain string otherwise, so that 2, true and [1,2] arrive as numbers,
// booleans and arrays while hello stays a string.
func parseArg(s string) any {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if gjson.Valid(s) {
		return gjson.Parse(s).Value()
	}
	return s
}

// parseArgList reads a comma separated argument list typed into the
// interactive prompt. The list is parsed as the body of a JSON array; if
// that fails each element is parsed on its own.
func parseArgList(s string) []any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if list := "[" + s + "]"; gjson.Valid(list) {
		return gjson.Parse(list).Value().([]any)
	}
	var out []any
	for _, part := range strings.Split(s, ",") {
		out = append(out, parseArg(strings.TrimSpace(part)))
	}
	return out
}

// parsePairs splits "K=V,K2=V2" style flag values on sep.
func parsePairs(s, sep string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, sep, 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}
