package remote

import (
	"regexp"
	"strconv"

	"github.com/pitabwire/pokerub/model"
)

var trailingIDPattern = regexp.MustCompile(`/(\d+)/$`)

// ExtractID returns the last numeric path segment of a resource URL that
// ends in a separator, e.g. 25 for ".../pokemon/25/".
func ExtractID(resourceURL string) (int, error) {
	m := trailingIDPattern.FindStringSubmatch(resourceURL)
	if m == nil {
		return 0, &model.MalformedIDError{URL: resourceURL}
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &model.MalformedIDError{URL: resourceURL}
	}
	return id, nil
}
