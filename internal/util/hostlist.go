package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rangeExprRegex = regexp.MustCompile(`.*\[(.*)\](\..*)*$`)

// ParseHostList expands a host expression like
// "rack1-node[01-04],spare[1,3].example.com" into individual host names.
// Bare names pass through untouched.
func ParseHostList(hostStr string) ([]string, error) {
	nameStr := strings.ReplaceAll(hostStr, " ", "") + ","

	var nameMeta string
	var exprList []string
	var bracketed string

	for _, c := range nameStr {
		switch c {
		case '[':
			if bracketed != "" {
				return nil, fmt.Errorf("illegal host expression %q: nested brackets", hostStr)
			}
			bracketed = string(c)
		case ']':
			if bracketed == "" {
				return nil, fmt.Errorf("illegal host expression %q: isolated bracket", hostStr)
			}
			nameMeta += bracketed + string(c)
			bracketed = ""
		case ',':
			if bracketed == "" {
				exprList = append(exprList, nameMeta)
				nameMeta = ""
			} else {
				bracketed += string(c)
			}
		default:
			if bracketed == "" {
				nameMeta += string(c)
			} else {
				bracketed += string(c)
			}
		}
	}
	if bracketed != "" {
		return nil, fmt.Errorf("illegal host expression %q: isolated bracket", hostStr)
	}

	var hosts []string
	for _, expr := range exprList {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if !rangeExprRegex.MatchString(expr) {
			hosts = append(hosts, expr)
			continue
		}
		expanded, err := expandRangeExpr(expr)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, expanded...)
	}
	return hosts, nil
}

// expandRangeExpr expands one bracketed expression, e.g.
// "node[1-3,7]" or "r[1-2]n[1-2]". Zero-padded bounds keep their
// width in the result.
func expandRangeExpr(expr string) ([]string, error) {
	numRegex := regexp.MustCompile(`^\d+$`)
	scopeRegex := regexp.MustCompile(`^(\d+)-(\d+)$`)

	unitStrList := strings.Split(expr, "]")
	endStr := unitStrList[len(unitStrList)-1]
	unitStrList = unitStrList[:len(unitStrList)-1]
	resList := []string{""}

	for _, str := range unitStrList {
		parts := strings.FieldsFunc(str, func(r rune) bool {
			return r == '[' || r == ','
		})
		if len(parts) < 2 {
			return nil, fmt.Errorf("illegal host expression %q: empty brackets", expr)
		}
		headStr := parts[0]

		var unitList []string
		for _, numStr := range parts[1:] {
			switch {
			case numRegex.MatchString(numStr):
				unitList = append(unitList, headStr+numStr)
			case scopeRegex.MatchString(numStr):
				bounds := scopeRegex.FindStringSubmatch(numStr)
				start, err1 := strconv.Atoi(bounds[1])
				end, err2 := strconv.Atoi(bounds[2])
				if err1 != nil || err2 != nil || start > end {
					return nil, fmt.Errorf("illegal host range %q in %q", numStr, expr)
				}
				width := len(bounds[1])
				for j := start; j <= end; j++ {
					unitList = append(unitList, fmt.Sprintf("%s%0*d", headStr, width, j))
				}
			default:
				return nil, fmt.Errorf("illegal host range %q in %q", numStr, expr)
			}
		}

		var tempList []string
		for _, left := range resList {
			for _, right := range unitList {
				tempList = append(tempList, left+right)
			}
		}
		resList = tempList
	}

	if endStr != "" {
		for i := range resList {
			resList[i] += endStr
		}
	}
	return resList, nil
}
