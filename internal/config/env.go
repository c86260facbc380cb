package config

import (
	"maps"
	"os"

	"github.com/joho/godotenv"

	"expgram/internal/resource"
)

// CaptureEnv snapshots the propagated variables from the process environment,
// then overlays those defined in envFile when it is set. Variables outside
// resource.PropagatedEnv are ignored in both sources.
func CaptureEnv(envFile string) (map[string]string, error) {
	env := make(map[string]string, len(resource.PropagatedEnv))
	for _, name := range resource.PropagatedEnv {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	if envFile == "" {
		return env, nil
	}

	file, err := godotenv.Read(envFile)
	if err != nil {
		return nil, &Error{Option: "env-file", Msg: "read " + envFile, Err: err}
	}
	for _, name := range resource.PropagatedEnv {
		if v, ok := file[name]; ok {
			env[name] = v
		}
	}
	return env, nil
}

func withEnv(env map[string]string, name, value string) map[string]string {
	out := maps.Clone(env)
	if out == nil {
		out = make(map[string]string, 1)
	}
	out[name] = value
	return out
}
