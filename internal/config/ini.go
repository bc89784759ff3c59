package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// iniCodec decodes dl.cfg style files: keys of a [section] land under "section.key",
// keys above the first section are top level.
type iniCodec struct{}

func (iniCodec) Decode(b []byte, v map[string]any) error {
	cfg, err := ini.Load(b)
	if err != nil {
		return fmt.Errorf("failed to parse ini: %w", err)
	}

	for _, section := range cfg.Sections() {
		target := v
		if section.Name() != ini.DefaultSection {
			name := strings.ToLower(section.Name())
			nested, ok := v[name].(map[string]any)
			if !ok {
				nested = make(map[string]any)
				v[name] = nested
			}
			target = nested
		}
		for _, key := range section.Keys() {
			target[strings.ToLower(key.Name())] = key.String()
		}
	}

	return nil
}

func (iniCodec) Encode(v map[string]any) ([]byte, error) {
	cfg := ini.Empty()

	for name, value := range v {
		nested, ok := value.(map[string]any)
		if !ok {
			cfg.Section(ini.DefaultSection).Key(name).SetValue(fmt.Sprint(value))
			continue
		}
		section := cfg.Section(name)
		for key, inner := range nested {
			section.Key(key).SetValue(fmt.Sprint(inner))
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newCodecRegistry() *viper.DefaultCodecRegistry {
	registry := viper.NewCodecRegistry()
	_ = registry.RegisterCodec("ini", iniCodec{})
	return registry
}
