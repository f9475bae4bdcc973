package main

import "gapchat/pkg/i18n"

func __(message string) string {
	return i18n.Translate(message)
}
