package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML parameter file on top of Default()
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read params file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes; fields left out keep their default value
func Parse(data []byte) (Params, error) {
	p := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&p); err != nil {
		return Params{}, fmt.Errorf("decode params: %w", err)
	}

	if err := Validate(&p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadOrDefault returns Default() when path is empty
func LoadOrDefault(path string) (Params, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Hash generates SHA256 hash from Params (canonical JSON)
func Hash(p Params) string {
	// Struct → JSON (결정적 순서)
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		// Params는 기본 타입만 포함하므로 실패할 수 없음
		return ""
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:])
}
