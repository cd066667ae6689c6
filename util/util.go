package util

import (
	"github.com/lithammer/shortuuid/v4"
)

func GenUUID() string {
	return shortuuid.New()
}
