package main

import (
	"errors"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "success",
			want: 0,
		},
		{
			name: "help",
			err:  &flags.Error{Type: flags.ErrHelp},
			want: 0,
		},
		{
			name: "no archives",
			err:  &flags.Error{Type: flags.ErrRequired},
			want: 2,
		},
		{
			name: "failed archives",
			err:  errors.New("1/2 archives could not be unpacked"),
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
