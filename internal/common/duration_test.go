package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type intervals struct {
	Poll  Duration `json:"poll" yaml:"poll" toml:"poll"`
	Flush Duration `json:"flush" yaml:"flush" toml:"flush"`
}

func TestDuration_Decode(t *testing.T) {
	want := intervals{Poll: NewDuration(250 * time.Millisecond), Flush: NewDuration(time.Hour + 30*time.Minute)}

	tests := []struct {
		name   string
		decode func(out *intervals) error
	}{
		{
			name: "json",
			decode: func(out *intervals) error {
				return json.Unmarshal([]byte(`{"poll": "250ms", "flush": "1h30m"}`), out)
			},
		},
		{
			name: "yaml",
			decode: func(out *intervals) error {
				return yaml.Unmarshal([]byte("poll: 250ms\nflush: 1h30m\n"), out)
			},
		},
		{
			name: "toml",
			decode: func(out *intervals) error {
				_, err := toml.Decode("poll = \"250ms\"\nflush = \"1h30m\"\n", out)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got intervals
			require.NoError(t, tt.decode(&got))
			require.Equal(t, want, got)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	for _, input := range []string{"", "5", "ten seconds", "1d", "-"} {
		var d Duration
		require.Error(t, d.UnmarshalText([]byte(input)), "input %q", input)
	}

	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("-1m")))
	require.Equal(t, -time.Minute, d.Duration)
}

func TestDuration_Encode(t *testing.T) {
	in := intervals{Poll: NewDuration(5 * time.Second)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"poll": "5s", "flush": "0s"}`, string(data))

	data, err = yaml.Marshal(in)
	require.NoError(t, err)

	var back intervals
	require.NoError(t, yaml.Unmarshal(data, &back))
	require.Equal(t, in, back)
}

func TestDuration_JSONSchema(t *testing.T) {
	schema := Duration{}.JSONSchema()
	require.Equal(t, "string", schema.Type)
	require.Equal(t, "Duration", schema.Title)
	require.Contains(t, schema.Examples, "30s")
}
