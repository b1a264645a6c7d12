package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileVersion = "1.0"

type libraryFile struct {
	Version     string         `yaml:"version"`
	Description string         `yaml:"description,omitempty"`
	Templates   []templateFile `yaml:"templates"`
}

// templateFile is the on-disk record. Port counts are pointers so an absent
// key can default to one port.
type templateFile struct {
	TypeID            string   `yaml:"typeId"`
	DisplayName       string   `yaml:"displayName"`
	Category          string   `yaml:"category,omitempty"`
	Color             string   `yaml:"color,omitempty"`
	Description       string   `yaml:"description,omitempty"`
	DefaultParameters []string `yaml:"defaultParameters,omitempty"`
	InputPortCount    *int     `yaml:"inputPortCount,omitempty"`
	OutputPortCount   *int     `yaml:"outputPortCount,omitempty"`
	BuiltIn           bool     `yaml:"builtIn,omitempty"`
}

func toFile(t Template) templateFile {
	in, out := t.InputPortCount, t.OutputPortCount
	return templateFile{
		TypeID:            t.TypeID,
		DisplayName:       t.DisplayName,
		Category:          t.Category,
		Color:             t.Color,
		Description:       t.Description,
		DefaultParameters: t.DefaultParameters,
		InputPortCount:    &in,
		OutputPortCount:   &out,
		BuiltIn:           t.BuiltIn,
	}
}

func (f templateFile) template() Template {
	t := Template{
		TypeID:            f.TypeID,
		DisplayName:       f.DisplayName,
		Category:          f.Category,
		Color:             f.Color,
		Description:       f.Description,
		DefaultParameters: f.DefaultParameters,
		InputPortCount:    1,
		OutputPortCount:   1,
		BuiltIn:           f.BuiltIn,
	}
	if f.InputPortCount != nil {
		t.InputPortCount = *f.InputPortCount
	}
	if f.OutputPortCount != nil {
		t.OutputPortCount = *f.OutputPortCount
	}
	return t
}

func readFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf libraryFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]Template, 0, len(lf.Templates))
	for _, tf := range lf.Templates {
		out = append(out, tf.template())
	}
	return out, nil
}

func writeFile(path, description string, ts []Template) error {
	lf := libraryFile{Version: fileVersion, Description: description}
	for _, t := range ts {
		lf.Templates = append(lf.Templates, toFile(t))
	}
	data, err := yaml.Marshal(&lf)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dagflow-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Load replaces the library contents with the templates stored at path.
func (l *Library) Load(path string) error {
	ts, err := readFile(path)
	if err != nil {
		return fmt.Errorf("catalog: load: %w", err)
	}
	l.replace(ts)
	return nil
}

// Save writes every template to path.
func (l *Library) Save(path string) error {
	if err := writeFile(path, "node library", l.All()); err != nil {
		return fmt.Errorf("catalog: save: %w", err)
	}
	return nil
}

// SaveCustom writes only the templates that are not built in.
func (l *Library) SaveCustom(path string) error {
	var custom []Template
	for _, t := range l.All() {
		if !t.BuiltIn {
			custom = append(custom, t)
		}
	}
	if err := writeFile(path, "custom node library", custom); err != nil {
		return fmt.Errorf("catalog: save custom: %w", err)
	}
	return nil
}

// LoadCustom adds or updates the non-built-in templates stored at path and
// keeps everything else. It returns the number of templates merged.
func (l *Library) LoadCustom(path string) (int, error) {
	ts, err := readFile(path)
	if err != nil {
		return 0, fmt.Errorf("catalog: load custom: %w", err)
	}
	return l.merge(ts), nil
}

// Open returns a library backed by path. A missing file is created from the
// built-ins; an unreadable one is logged and overwritten with them.
func Open(path string, logger *slog.Logger) (*Library, error) {
	l := NewLibrary()
	if path == "" {
		return l, nil
	}
	err := l.Load(path)
	switch {
	case err == nil:
		logger.Info("catalog: loaded", slog.String("path", path), slog.Int("templates", len(l.All())))
		return l, nil
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("catalog: creating default library", slog.String("path", path))
	default:
		logger.Warn("catalog: load failed, using defaults", slog.String("path", path), slog.String("error", err.Error()))
	}
	l.ResetToDefaults()
	if err := l.Save(path); err != nil {
		return nil, err
	}
	return l, nil
}
