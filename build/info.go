package build

import "runtime/debug"

type Info struct {
	Path       string `json:"path,omitempty"`
	Version    string `json:"version,omitempty"`
	Checksum   string `json:"checksum,omitempty"`
	CommitHash string `json:"commitHash,omitempty"`
	CommitTime string `json:"commitTime,omitempty"`
	Modified   bool   `json:"modified,omitempty"`
}

// GetBuildInfo never returns nil; fields stay empty when the binary carries no build info.
func GetBuildInfo() *Info {
	result := &Info{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return result
	}

	result.Path = bi.Main.Path
	result.Version = bi.Main.Version
	result.Checksum = bi.Main.Sum

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			result.CommitHash = s.Value
		case "vcs.time":
			result.CommitTime = s.Value
		case "vcs.modified":
			result.Modified = s.Value == "true"
		}
	}
	return result
}
