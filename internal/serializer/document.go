// Package serializer converts a collection (with its folders and
// requests) to and from a directory-of-YAML-documents shape suitable for
// committing to a remote. Document layout, rooted at "{collection_id}/":
//
//	_collection.yaml
//	_manifest.yaml
//	{request_id}.yaml
//	{folder_id}/_folder.yaml
//	{folder_id}/_manifest.yaml
//	...
package serializer

// CollectionDocument is the contents of a collection's _collection.yaml.
type CollectionDocument struct {
	ID                     string            `yaml:"id"`
	Name                   string            `yaml:"name"`
	Description            string            `yaml:"description,omitempty"`
	Variables              map[string]string `yaml:"variables,omitempty"`
	EnvironmentHints       []string          `yaml:"environment_hints,omitempty"`
	DefaultEnvironmentHint string            `yaml:"default_environment_hint,omitempty"`
}

// FolderDocument is the contents of a folder's _folder.yaml.
type FolderDocument struct {
	ID                     string   `yaml:"id"`
	Name                   string   `yaml:"name"`
	EnvironmentHints       []string `yaml:"environment_hints,omitempty"`
	DefaultEnvironmentHint string   `yaml:"default_environment_hint,omitempty"`
}

// ManifestEntry is one ordered child reference within a _manifest.yaml.
type ManifestEntry struct {
	Type string `yaml:"type"` // "folder" | "request"
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ManifestDocument is the contents of a _manifest.yaml.
type ManifestDocument struct {
	Entries []ManifestEntry `yaml:"entries"`
}

// KeyValueDocument is a single header/query-param entry within a request document.
type KeyValueDocument struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Enabled bool   `yaml:"enabled"`
}

// AuthDocument is the tagged auth block within a request document.
type AuthDocument struct {
	Type          string `yaml:"type"`
	BearerToken   string `yaml:"bearer_token,omitempty"`
	BasicUsername string `yaml:"basic_username,omitempty"`
	BasicPassword string `yaml:"basic_password,omitempty"`
	APIKeyName    string `yaml:"api_key_name,omitempty"`
	APIKeyValue   string `yaml:"api_key_value,omitempty"`
	APIKeyIn      string `yaml:"api_key_in,omitempty"`
}

// PreRequestScriptDocument mirrors store.PreRequestScript.
type PreRequestScriptDocument struct {
	Action    string `yaml:"action"`
	RequestID string `yaml:"request_id"`
}

// PostResponseActionDocument mirrors store.PostResponseAction.
type PostResponseActionDocument struct {
	Action string `yaml:"action"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ScriptsDocument mirrors store.ScriptsConfig.
type ScriptsDocument struct {
	PreRequest   *PreRequestScriptDocument    `yaml:"pre_request,omitempty"`
	PostResponse []PostResponseActionDocument `yaml:"post_response,omitempty"`
}

// RequestDocument is the full contents of a request's {request_id}.yaml.
type RequestDocument struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Method      string             `yaml:"method"`
	URL         string             `yaml:"url"`
	Headers     []KeyValueDocument `yaml:"headers"`
	QueryParams []KeyValueDocument `yaml:"query_params"`
	Body        string             `yaml:"body,omitempty"`
	BodyType    string             `yaml:"body_type"`
	Auth        AuthDocument       `yaml:"auth"`
	Scripts     *ScriptsDocument   `yaml:"scripts,omitempty"`
}
