package main

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	HistoryLimit    *int          `env:"HISTORY_LIMIT"`
	CensoredWords   []string      `env:"CENSORED_WORDS"`
	CensorCharacter string        `env:"CENSOR_CHARACTER,default=*"`
	RetryInitial    time.Duration `env:"SUBSCRIPTION_RETRY_INITIAL,default=500ms"`
	RetryMax        time.Duration `env:"SUBSCRIPTION_RETRY_MAX,default=30s"`
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CENSOR_CHARACTER must be a single character, got %q", str)
	}
	return r[0], nil
}
