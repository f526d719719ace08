package config

import (
	"errors"
	"io/fs"

	"github.com/spf13/viper"
)

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}
