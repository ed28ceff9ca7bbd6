package policy

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed policies/*.yaml
var builtinFS embed.FS

// Builtin parses the policies shipped with the binary.
func Builtin() ([]*Policy, error) {
	return loadFS(builtinFS, "policies", nil)
}

// LoadFile parses a single policy file.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// LoadDir parses every *.yaml / *.yml file in dir. With a verifier, each file
// needs a valid detached armored signature next to it (<file>.asc).
func LoadDir(dir string, verifier *SignatureVerifier) ([]*Policy, error) {
	return loadFS(os.DirFS(dir), ".", verifier)
}

func loadFS(fsys fs.FS, dir string, verifier *SignatureVerifier) ([]*Policy, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*Policy, 0, len(names))
	for _, name := range names {
		path := name
		if dir != "." {
			path = dir + "/" + name
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if verifier != nil {
			sig, err := fsys.Open(path + ".asc")
			if err != nil {
				return nil, fmt.Errorf("missing signature for %s: %w", name, err)
			}
			verr := verifier.Verify(data, sig)
			_ = sig.Close()
			if verr != nil {
				return nil, fmt.Errorf("%s: %w", name, verr)
			}
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadOptions selects where policies come from.
type LoadOptions struct {
	Dir            string // optional extra policy directory
	KeyringPath    string // when set, files in Dir must be signed
	DefaultVersion string
}

// Load merges the builtin policies with those in opts.Dir. A directory policy
// may repeat a builtin version only with byte-identical content.
func Load(opts LoadOptions) ([]*Policy, error) {
	all, err := Builtin()
	if err != nil {
		return nil, err
	}
	if opts.Dir == "" {
		return all, nil
	}
	var verifier *SignatureVerifier
	if opts.KeyringPath != "" {
		verifier, err = NewSignatureVerifier(opts.KeyringPath)
		if err != nil {
			return nil, err
		}
	}
	extra, err := LoadDir(opts.Dir, verifier)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]*Policy, len(all))
	for _, p := range all {
		byVersion[p.Version] = p
	}
	for _, p := range extra {
		if prev, ok := byVersion[p.Version]; ok {
			if prev.Hash != p.Hash {
				return nil, fmt.Errorf("policy %s already published with different content", p.Version)
			}
			continue
		}
		byVersion[p.Version] = p
		all = append(all, p)
	}
	return all, nil
}

// NewRegistryFromOptions loads policies and publishes them.
func NewRegistryFromOptions(opts LoadOptions) (*Registry, error) {
	policies, err := Load(opts)
	if err != nil {
		return nil, err
	}
	return NewRegistry(opts.DefaultVersion, policies...)
}

// Reload re-reads the policy sources and publishes a fresh snapshot.
func (r *Registry) Reload(opts LoadOptions) error {
	policies, err := Load(opts)
	if err != nil {
		return err
	}
	return r.Publish(opts.DefaultVersion, policies...)
}
