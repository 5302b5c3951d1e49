package schedule

import (
	"strconv"
	"strings"

	"github.com/agrosmart/cropwater/internal/model"
)

// parseRange decomposes a token like "60-90", "24-28°C" or "60-80%" into its
// two bounds. Unit suffixes are stripped before splitting. Exactly two numeric
// parts separated by the range delimiter are required.
func parseRange(field, token string) (lo, hi float64, err error) {
	s := strings.TrimSpace(token)
	s = strings.TrimSuffix(s, "°C")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, &model.ParseError{Field: field, Token: token,
			Reason: "want exactly two numbers separated by '-'"}
	}
	lo, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, &model.ParseError{Field: field, Token: token,
			Reason: "lower bound is not a number"}
	}
	hi, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, &model.ParseError{Field: field, Token: token,
			Reason: "upper bound is not a number"}
	}
	return lo, hi, nil
}
