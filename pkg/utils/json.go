package utils

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PrettyJson serializa com indentação; em caso de erro devolve a mensagem
func PrettyJson(in any) string {
	buffer, err := json.MarshalIndent(in, "", "\t")
	if err != nil {
		return err.Error()
	}
	return string(buffer)
}
