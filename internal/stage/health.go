package stage

import (
	"path/filepath"

	"boxd/internal/preflight"
)

// Health is a stage's answer to "could you run right now".
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// OutputDirHealth reports name ready when the directory holding outputPath
// exists and is readable and writable.
func OutputDirHealth(name, label, outputPath string) Health {
	result := preflight.CheckDirectoryAccess(label, filepath.Dir(outputPath))
	if !result.Passed {
		return Unhealthy(name, result.Detail)
	}
	return Healthy(name)
}
