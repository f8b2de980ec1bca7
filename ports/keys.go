package ports

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RefPrefix starts every reference token.
const RefPrefix = "ref:"

// AllVersions disables version filtering in index lookups.
const AllVersions = "all"

// DocumentKey returns "{schema_path}:{identity}".
func DocumentKey(schemaPath, identity string) string {
	return schemaPath + ":" + identity
}

// IndexPrefix returns "{schema_path}:indexes:{attr}".
func IndexPrefix(schemaPath, attr string) string {
	return schemaPath + ":indexes:" + attr
}

// IndexKey returns "{schema_path}:indexes:{attr}:{value}".
func IndexKey(schemaPath, attr, value string) string {
	return IndexPrefix(schemaPath, attr) + ":" + value
}

// RefToken returns "ref:{schema_path}:{identity}".
func RefToken(schemaPath, identity string) string {
	return RefPrefix + DocumentKey(schemaPath, identity)
}

// IsRef reports whether v is a reference token.
func IsRef(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, RefPrefix)
}

// ParseRef splits a reference token into its schema path and identity.
// Schema paths never contain ':', identities may ("id:version").
func ParseRef(token string) (schemaPath, identity string, ok bool) {
	rest, found := strings.CutPrefix(token, RefPrefix)
	if !found {
		return "", "", false
	}
	return SplitKey(rest)
}

// SplitKey splits a document key into its schema path and identity.
func SplitKey(key string) (schemaPath, identity string, ok bool) {
	schemaPath, identity, found := strings.Cut(key, ":")
	if !found || schemaPath == "" || identity == "" {
		return "", "", false
	}
	return schemaPath, identity, true
}

// BaseID returns the id part of a composite identity.
func BaseID(identity string) string {
	id, _, _ := strings.Cut(identity, ":")
	return id
}

// VersionOf returns the version part of a composite identity, or "".
func VersionOf(identity string) string {
	_, v, _ := strings.Cut(identity, ":")
	return v
}

// MatchVersion reports whether identity passes the version filter.
func MatchVersion(identity, version string) bool {
	return version == "" || version == AllVersions || VersionOf(identity) == version
}

// IndexValue formats an index value the way it appears in index keys.
// Blank values format as "".
func IndexValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
