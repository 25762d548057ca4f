package common

import "strings"

// Asset es un archivo dentro de una version de un dandiset.
type Asset struct {
	AssetID  string `json:"asset_id" yaml:"asset_id"`
	Path     string `json:"path" yaml:"path"`
	Size     int64  `json:"size" yaml:"size"`
	Modified string `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// IsNWB indica si el asset es un archivo NWB (solo por extension).
func (a Asset) IsNWB() bool {
	return strings.HasSuffix(a.Path, ExtNWB)
}

// Dandiset identifica un dataset y la version que se recorre.
type Dandiset struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Version    string `json:"version" yaml:"version"` // "draft" o "0.240327.2229"
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (d Dandiset) String() string {
	if d.Version == "" {
		return d.Identifier
	}
	return d.Identifier + "@" + d.Version
}
