package util

import "regexp"

// Check if the provided url is valid, can be http or https and have a valid format
func IsUrlValid(url string) bool {
	pattern := `^(http|https):\/\/[a-zA-Z0-9\-\.]+\.[a-zA-Z]{2,}(\/\S*)?$`
	return IsMatchRegex(pattern, url)
}

// Check if the provided alias is safe to use as a short code:
// base62 characters only, 1 to 32 characters
func IsAliasValid(alias string) bool {
	pattern := `^[0-9a-zA-Z]{1,32}$`
	return IsMatchRegex(pattern, alias)
}

func IsMatchRegex(pattern string, value string) bool {
	regexp, _ := regexp.Compile(pattern)
	return regexp.MatchString(value)
}
