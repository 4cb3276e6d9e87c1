package store

import "time"

// BodyType enumerates the shape of a Request's body payload.
type BodyType string

const (
	BodyNone       BodyType = "none"
	BodyJSON       BodyType = "json"
	BodyXML        BodyType = "xml"
	BodyFormData   BodyType = "form-data"
	BodyURLEncoded BodyType = "urlencoded"
	BodyRaw        BodyType = "raw"
	BodyGraphQL    BodyType = "graphql"
)

// AuthType enumerates the tagged auth variants a Request may carry.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api-key"
)

// Method enumerates the HTTP methods a Request may use.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Workspace is the top-level ownership boundary for collections and environments.
type Workspace struct {
	ID        string
	Name      string
	Order     int
	Settings  map[string]interface{} // nested settings document
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileSHAEntry tracks the merge-base bookkeeping for one serialized path.
type FileSHAEntry struct {
	ContentHash string `json:"content_hash"`
	RemoteSHA   string `json:"remote_sha"`
	CommitSHA   string `json:"commit_sha"`
}

// Collection owns folders and requests and carries sync bookkeeping.
type Collection struct {
	ID             string
	WorkspaceID    string // may be empty: unowned
	Name           string
	Order          int
	SyncEnabled    bool
	IsDirty        bool
	RemoteSHA      string
	RemoteSyncedAt *time.Time
	Variables      map[string]string // collection-level overlay
	EnvironmentIDs []string
	DefaultEnvID   string
	FileSHAs       map[string]FileSHAEntry // relative path -> entry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Folder forms a self-referential tree under a Collection, max depth 3.
type Folder struct {
	ID             string
	CollectionID   string
	ParentFolderID string // empty: collection root
	Name           string
	Order          int
	EnvironmentIDs []string
	DefaultEnvID   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KeyValueEntry is a single header/query-param/form field entry.
type KeyValueEntry struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// AuthConfig is the tagged auth variant attached to a Request.
type AuthConfig struct {
	Type          AuthType `json:"type"`
	BearerToken   string   `json:"bearer_token,omitempty"`
	BasicUsername string   `json:"basic_username,omitempty"`
	BasicPassword string   `json:"basic_password,omitempty"`
	APIKeyName    string   `json:"api_key_name,omitempty"`
	APIKeyValue   string   `json:"api_key_value,omitempty"`
	APIKeyIn      string   `json:"api_key_in,omitempty"` // "header" | "query"
}

// PreRequestScript chains to another request before this one sends.
type PreRequestScript struct {
	Action    string `json:"action"` // "send_request"
	RequestID string `json:"request_id"`
}

// PostResponseAction extracts a value from the response and assigns it to a variable.
type PostResponseAction struct {
	Action string `json:"action"` // "set_variable"
	Source string `json:"source"` // "status" | "header.<Name>" | "body.<path>[n]"
	Target string `json:"target"` // variable name
}

// ScriptsConfig is the pre/post-request script set attached to a Request.
type ScriptsConfig struct {
	PreRequest    *PreRequestScript     `json:"pre_request,omitempty"`
	PostResponse  []PostResponseAction  `json:"post_response,omitempty"`
}

// Request is a single HTTP call definition owned by a Collection.
type Request struct {
	ID           string
	CollectionID string
	FolderID     string // empty: collection root
	Name         string
	Order        int
	Method       Method
	URL          string // template, may contain {{name}}
	Headers      []KeyValueEntry
	QueryParams  []KeyValueEntry
	Body         string
	BodyType     BodyType
	Auth         AuthConfig
	Scripts      ScriptsConfig
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EnvironmentVariable is a single environment-scoped variable.
type EnvironmentVariable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Environment holds variables scoped to a Workspace, optionally vault-synced.
type Environment struct {
	ID          string
	WorkspaceID string
	Name        string
	IsActive    bool
	Order       int
	Variables   []EnvironmentVariable
	VaultSynced bool
	VaultPath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RequestHistory is an executed-request trace row.
type RequestHistory struct {
	ID              string
	RequestID       string
	Method          Method
	URL             string
	Status          int
	RequestHeaders  map[string]string
	RequestBody     string
	ResponseHeaders map[string]string
	ResponseBody    string
	DurationMS      int64
	ExecutedAt      time.Time
}

// SettingScope distinguishes global from per-workspace settings.
type SettingScope string

const (
	ScopeGlobal    SettingScope = "global"
	ScopeWorkspace SettingScope = "workspace"
)

// Setting is a single key/value row, optionally scoped to a workspace.
type Setting struct {
	Key         string
	Value       string
	Scope       SettingScope
	WorkspaceID string // empty for global scope
}

// SensitiveSettingKeys enumerates settings whose value is fully
// encrypted on write, per spec.
var SensitiveSettingKeys = map[string]bool{
	"vault.token":    true,
	"vault.role_id":  true,
	"vault.secret_id": true,
	"sync.token":     true,
}

// ReadOnlySettingPrefixes enumerates key prefixes rejected by Set.
var ReadOnlySettingPrefixes = []string{"encryption.", "app.version"}
