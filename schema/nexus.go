package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/resource"
)

const restBase = "/service/rest/v1"

var repositoryFormats = []string{"maven", "docker", "npm", "raw"}

// repositoryKind extracts the hosted/proxy/group part out of a repository
// type name such as "maven-hosted-repository". Empty for non-repository
// types.
func repositoryKind(name string) string {
	trimmed, isRepository := strings.CutSuffix(name, "-repository")
	if !isRepository {
		return ""
	}
	parts := strings.Split(trimmed, "-")
	if len(parts) != 2 {
		return ""
	}
	switch parts[1] {
	case "hosted", "proxy", "group":
		return parts[1]
	}
	return ""
}

// apiFormat maps a catalog format to the format string the API reports.
func apiFormat(format string) string {
	if format == "maven" {
		return "maven2"
	}
	return format
}

// NewCatalog builds the registry of built-in Nexus Repository resource
// types and their canonical/legacy schemas.
func NewCatalog() *Registry {
	registry := NewRegistry()

	registerBlobStores(registry)
	registerContentSelectors(registry)
	registerRoutingRules(registry)
	registerCleanupPolicies(registry)
	registerLDAPConnections(registry)
	registerPrivileges(registry)
	registerRoles(registry)
	registerUsers(registry)
	registerUserTokenSettings(registry)
	registerRepositories(registry)
	registerSecurityRealms(registry)
	registerAnonymousAccess(registry)

	return registry
}

func registerBlobStores(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "file-blob-store",
		NaturalKeyField: "name",
		EndpointPath:    restBase + "/blobstores/file",
		ListPath:        restBase + "/blobstores",
		ListJQ:          `[.[] | select(.type == "File")]`,
		SuppressCompare: []string{"type", "unavailable", "blobCount", "totalSizeInBytes", "availableSpaceInBytes"},
	})
	registry.Register("file-blob-store", DialectCanonical, Schema{
		RequiredFields: []string{"name", "path"},
	})
	registry.Register("file-blob-store", DialectLegacy, Schema{
		FieldMap: map[string]FieldMapping{
			"blob_path":       {Path: "path"},
			"quota_limit":     {Path: "softQuota.limit"},
			"quota_type":      {Path: "softQuota.type"},
			"soft_quota":      {Path: "softQuota"},
			"max_total_bytes": {Path: "softQuota.limit"},
		},
		RequiredFields: []string{"name", "path"},
	})

	registry.RegisterType(ResourceType{
		Name:            "s3-blob-store",
		NaturalKeyField: "name",
		EndpointPath:    restBase + "/blobstores/s3",
		ListPath:        restBase + "/blobstores",
		ListJQ:          `[.[] | select(.type == "S3")]`,
		SuppressCompare: []string{"type", "unavailable", "blobCount", "totalSizeInBytes", "availableSpaceInBytes"},
	})
	registry.Register("s3-blob-store", DialectCanonical, Schema{
		RequiredFields: []string{"name", "bucketConfiguration.bucket.name", "bucketConfiguration.bucket.region"},
	})
}

func registerContentSelectors(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "content-selector",
		NaturalKeyField: "name",
		EndpointPath:    restBase + "/security/content-selectors",
	})
	canonical := Schema{
		DefaultValues:  resource.Doc{"type": "csel", "description": ""},
		RequiredFields: []string{"name", "expression"},
	}
	registry.Register("content-selector", DialectCanonical, canonical)

	legacy := canonical
	legacy.FieldMap = map[string]FieldMapping{
		"search_expression": {Path: "expression"},
	}
	registry.Register("content-selector", DialectLegacy, legacy)
}

func registerRoutingRules(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "routing-rule",
		NaturalKeyField: "name",
		EndpointPath:    restBase + "/routing-rules",
	})
	registry.Register("routing-rule", DialectCanonical, Schema{
		DefaultValues:  resource.Doc{"mode": "BLOCK", "description": ""},
		RequiredFields: []string{"name", "matchers"},
	})
}

func registerCleanupPolicies(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:             "cleanup-policy",
		NaturalKeyField:  "name",
		EndpointPath:     restBase + "/cleanup-policies",
		MinServerVersion: ">= 3.29.0",
	})
	canonical := Schema{
		DefaultValues:  resource.Doc{"notes": ""},
		RequiredFields: []string{"name", "format"},
	}
	registry.Register("cleanup-policy", DialectCanonical, canonical)

	legacy := canonical
	legacy.FieldMap = map[string]FieldMapping{
		"criteria.lastBlobUpdated": {Path: "criteriaLastBlobUpdated", Convert: secondsToDays},
		"criteria.lastDownloaded":  {Path: "criteriaLastDownloaded", Convert: secondsToDays},
		"criteria.regexKey":        {Path: "criteriaAssetRegex"},
		"criteria.isPrerelease":    {Path: "criteriaReleaseType"},
		"regexKey":                 {Path: "criteriaAssetRegex"},
		"isPrerelease":             {Path: "criteriaReleaseType"},
	}
	legacy.Finalize = finalizeCleanupCriteria
	registry.Register("cleanup-policy", DialectLegacy, legacy)
}

// finalizeCleanupCriteria lifts criteria entries the field map does not
// enumerate into their flat criteriaX form, so new criterion kinds reach
// the API without a schema change.
func finalizeCleanupCriteria(doc resource.Doc) error {
	remaining, found := doc["criteria"]
	if !found {
		return nil
	}
	nested, isDoc := remaining.(map[string]any)
	if !isDoc {
		return faults.NewTypedError(faults.ValidationError, "cleanup policy criteria must be an object", nil)
	}
	delete(doc, "criteria")
	for key, value := range nested {
		if key == "" {
			continue
		}
		lifted := "criteria" + strings.ToUpper(key[:1]) + key[1:]
		if _, exists := doc[lifted]; !exists {
			doc[lifted] = value
		}
	}
	return nil
}

func registerLDAPConnections(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "ldap-connection",
		NaturalKeyField: "name",
		EndpointPath:    restBase + "/security/ldap",
		SuppressCompare: []string{"id", "authPassword"},
	})
	canonical := Schema{
		DefaultValues: resource.Doc{
			"connectionTimeoutSeconds":    int64(30),
			"connectionRetryDelaySeconds": int64(300),
			"maxIncidentsCount":           int64(3),
			"ldapGroupsAsRoles":           true,
			"groupSubtree":                false,
			"userSubtree":                 false,
		},
		RequiredFields: []string{"name", "protocol", "host", "port", "searchBase"},
		KeepEmpty:      []string{"groupSubtree", "userSubtree"},
		Finalize:       finalizeLDAPGroupType,
	}
	registry.Register("ldap-connection", DialectCanonical, canonical)

	legacy := canonical
	legacy.DefaultValues = resource.DeepCopy(canonical.DefaultValues).(resource.Doc)
	legacy.DefaultValues["protocol"] = "LDAP"
	legacy.DefaultValues["port"] = int64(389)
	legacy.DefaultValues["authScheme"] = "NONE"
	legacy.FieldMap = map[string]FieldMapping{
		"ldap_name":                     {Path: "name"},
		"ldap_protocol":                 {Path: "protocol"},
		"ldap_hostname":                 {Path: "host"},
		"ldap_port":                     {Path: "port"},
		"ldap_search_base":              {Path: "searchBase"},
		"ldap_auth":                     {Path: "authScheme", Convert: upperString},
		"ldap_use_trust_store":          {Path: "useTrustStore"},
		"ldap_user_base_dn":             {Path: "userBaseDn"},
		"ldap_user_filter":              {Path: "userLdapFilter"},
		"ldap_user_id_attribute":        {Path: "userIdAttribute"},
		"ldap_user_real_name_attribute": {Path: "userRealNameAttribute"},
		"ldap_user_email_attribute":     {Path: "userEmailAddressAttribute"},
		"ldap_user_object_class":        {Path: "userObjectClass"},
		"ldap_auth_username":            {Path: "authUsername"},
		"ldap_auth_password":            {Path: "authPassword"},
		"ldap_group_base_dn":            {Path: "groupBaseDn"},
		"ldap_group_object_class":       {Path: "groupObjectClass"},
		"ldap_group_id_attribute":       {Path: "groupIdAttribute"},
		"ldap_group_member_attribute":   {Path: "groupMemberAttribute"},
		"ldap_group_member_format":      {Path: "groupMemberFormat"},
		"ldap_user_member_of_attribute": {Path: "userMemberOfAttribute"},
	}
	registry.Register("ldap-connection", DialectLegacy, legacy)
}

// A connection with a group object class maps groups statically; one with a
// memberOf attribute maps them dynamically.
func finalizeLDAPGroupType(doc resource.Doc) error {
	if resource.HasPath(doc, "groupType") {
		return nil
	}
	if resource.HasPath(doc, "groupObjectClass") {
		resource.SetPath(doc, "groupType", "STATIC")
		return nil
	}
	if resource.HasPath(doc, "userMemberOfAttribute") {
		resource.SetPath(doc, "groupType", "DYNAMIC")
	}
	return nil
}

func registerPrivileges(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "privilege",
		NaturalKeyField: "name",
		EndpointPath:    restBase + "/security/privileges/repository-view",
		ListPath:        restBase + "/security/privileges",
		ListJQ:          `[.[] | select(.type == "repository-view")]`,
		ReadOnlyField:   "readOnly",
		SuppressCompare: []string{"type", "readOnly"},
	})
	canonical := Schema{
		DefaultValues:  resource.Doc{"description": "", "actions": []any{"READ"}},
		RequiredFields: []string{"name", "format", "repository"},
	}
	registry.Register("privilege", DialectCanonical, canonical)

	legacy := canonical
	legacy.FieldMap = map[string]FieldMapping{
		"repo":    {Path: "repository"},
		"pattern": {Path: "contentSelector"},
	}
	registry.Register("privilege", DialectLegacy, legacy)
}

func registerRoles(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "role",
		NaturalKeyField: "id",
		EndpointPath:    restBase + "/security/roles",
		ReadOnlyField:   "readOnly",
		SuppressCompare: []string{"source", "readOnly"},
	})
	canonical := Schema{
		DefaultValues:  resource.Doc{"description": ""},
		RequiredFields: []string{"id", "name"},
		KeepEmpty:      []string{"privileges", "roles"},
	}
	registry.Register("role", DialectCanonical, canonical)

	legacy := canonical
	legacy.FieldMap = map[string]FieldMapping{
		"member_roles": {Path: "roles"},
	}
	registry.Register("role", DialectLegacy, legacy)
}

func registerUsers(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:            "user",
		NaturalKeyField: "userId",
		EndpointPath:    restBase + "/security/users",
		ReadOnlyField:   "readOnly",
		SuppressCompare: []string{"password", "readOnly", "externalRoles"},
	})
	canonical := Schema{
		DefaultValues: resource.Doc{
			"source": "default",
			"status": "active",
		},
		RequiredFields: []string{"userId", "firstName", "lastName", "emailAddress"},
		KeepEmpty:      []string{"roles"},
	}
	registry.Register("user", DialectCanonical, canonical)

	legacy := canonical
	legacy.FieldMap = map[string]FieldMapping{
		"username":   {Path: "userId"},
		"first_name": {Path: "firstName"},
		"last_name":  {Path: "lastName"},
		"email":      {Path: "emailAddress"},
	}
	registry.Register("user", DialectLegacy, legacy)
}

func registerUserTokenSettings(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:               "user-token-settings",
		EndpointPath:       restBase + "/security/user-tokens",
		Singleton:          true,
		RequiresProFeature: true,
	})
	registry.Register("user-token-settings", DialectCanonical, Schema{
		DefaultValues: resource.Doc{
			"protectContent":    false,
			"expirationEnabled": false,
			"expirationDays":    int64(30),
		},
		RequiredFields: []string{"enabled"},
		KeepEmpty:      []string{"enabled", "protectContent", "expirationEnabled"},
	})
}

func registerSecurityRealms(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:                   "security-realms",
		EndpointPath:           restBase + "/security/realms/active",
		Singleton:              true,
		SingletonListAttribute: "active",
	})
	registry.Register("security-realms", DialectCanonical, Schema{
		DefaultValues:  resource.Doc{"active": []any{"NexusAuthenticatingRealm"}},
		RequiredFields: []string{"active"},
		KeepEmpty:      []string{"active"},
	})
}

func registerAnonymousAccess(registry *Registry) {
	registry.RegisterType(ResourceType{
		Name:         "anonymous-access",
		EndpointPath: restBase + "/security/anonymous",
		Singleton:    true,
	})
	registry.Register("anonymous-access", DialectCanonical, Schema{
		DefaultValues: resource.Doc{
			"userId":    "anonymous",
			"realmName": "NexusAuthorizingRealm",
		},
		RequiredFields: []string{"enabled", "userId", "realmName"},
		KeepEmpty:      []string{"enabled"},
	})
}

func registerRepositories(registry *Registry) {
	for _, format := range repositoryFormats {
		for _, kind := range []string{"hosted", "proxy", "group"} {
			if format == "raw" && kind == "group" {
				continue
			}
			name := fmt.Sprintf("%s-%s-repository", format, kind)
			registry.RegisterType(ResourceType{
				Name:                 name,
				NaturalKeyField:      "name",
				EndpointPath:         fmt.Sprintf("%s/repositories/%s/%s", restBase, format, kind),
				ListPath:             restBase + "/repositorySettings",
				ListJQ:               fmt.Sprintf(`[.[] | select(.format == %q and .type == %q)]`, apiFormat(format), kind),
				SupportsGroupVariant: kind == "group",
				SuppressCompare:      []string{"url", "format", "type", "httpClient.authentication.password"},
			})
			registry.Register(name, DialectCanonical, repositorySchema(format, kind))
			registry.Register(name, DialectLegacy, legacyRepositorySchema(format, kind))
		}
	}
}

func repositorySchema(format string, kind string) Schema {
	defaults := resource.Doc{
		"online": true,
		"storage": map[string]any{
			"blobStoreName":               "default",
			"strictContentTypeValidation": true,
		},
	}

	required := []string{"name", "storage.blobStoreName"}

	switch kind {
	case "hosted":
		resource.SetPath(defaults, "storage.writePolicy", "ALLOW_ONCE")
	case "proxy":
		resource.SetPath(defaults, "proxy.contentMaxAge", int64(-1))
		resource.SetPath(defaults, "proxy.metadataMaxAge", int64(1440))
		resource.SetPath(defaults, "negativeCache.enabled", true)
		resource.SetPath(defaults, "negativeCache.timeToLive", int64(1440))
		resource.SetPath(defaults, "httpClient.blocked", false)
		resource.SetPath(defaults, "httpClient.autoBlock", true)
		required = append(required, "proxy.remoteUrl")
	case "group":
		required = append(required, "group.memberNames")
	}

	if format == "maven" && kind != "group" {
		resource.SetPath(defaults, "maven.versionPolicy", "RELEASE")
		resource.SetPath(defaults, "maven.layoutPolicy", "STRICT")
	}
	if format == "docker" {
		resource.SetPath(defaults, "docker.v1Enabled", false)
		resource.SetPath(defaults, "docker.forceBasicAuth", true)
	}

	sch := Schema{
		DefaultValues:  defaults,
		RequiredFields: required,
		KeepEmpty:      []string{"online", "group.memberNames"},
	}
	if kind == "proxy" {
		sch.Finalize = finalizeHTTPClientAuth
	}
	return sch
}

func legacyRepositorySchema(format string, kind string) Schema {
	sch := repositorySchema(format, kind)
	fieldMap := map[string]FieldMapping{
		"blob_store":                {Path: "storage.blobStoreName"},
		"strict_content_validation": {Path: "storage.strictContentTypeValidation"},
		"cleanup_policies":          {Path: "cleanup.policyNames"},
	}

	switch kind {
	case "hosted":
		fieldMap["write_policy"] = FieldMapping{Path: "storage.writePolicy", Convert: upperString}
	case "proxy":
		fieldMap["remote_url"] = FieldMapping{Path: "proxy.remoteUrl"}
		fieldMap["maximum_component_age"] = FieldMapping{Path: "proxy.contentMaxAge"}
		fieldMap["maximum_metadata_age"] = FieldMapping{Path: "proxy.metadataMaxAge"}
		fieldMap["negative_cache_enabled"] = FieldMapping{Path: "negativeCache.enabled"}
		fieldMap["negative_cache_ttl"] = FieldMapping{Path: "negativeCache.timeToLive"}
		fieldMap["remote_username"] = FieldMapping{Path: "httpClient.authentication.username"}
		fieldMap["remote_password"] = FieldMapping{Path: "httpClient.authentication.password"}
	case "group":
		fieldMap["member_repos"] = FieldMapping{Path: "group.memberNames"}
	}

	if format == "maven" && kind != "group" {
		fieldMap["version_policy"] = FieldMapping{Path: "maven.versionPolicy", Convert: upperString}
		fieldMap["layout_policy"] = FieldMapping{Path: "maven.layoutPolicy", Convert: upperString}
	}
	if format == "docker" {
		fieldMap["http_port"] = FieldMapping{Path: "docker.httpPort"}
		fieldMap["https_port"] = FieldMapping{Path: "docker.httpsPort"}
		fieldMap["v1_enabled"] = FieldMapping{Path: "docker.v1Enabled"}
		fieldMap["force_basic_auth"] = FieldMapping{Path: "docker.forceBasicAuth"}
		if kind == "proxy" {
			fieldMap["index_type"] = FieldMapping{Path: "dockerProxy.indexType", Convert: upperString}
			fieldMap["index_url"] = FieldMapping{Path: "dockerProxy.indexUrl"}
		}
	}

	sch.FieldMap = fieldMap
	return sch
}

// finalizeHTTPClientAuth infers httpClient.authentication.type from the
// credential attributes present: all four NTLM attributes select ntlm,
// username plus password select username auth, partial credentials fail.
func finalizeHTTPClientAuth(doc resource.Doc) error {
	auth, found := resource.GetPath(doc, "httpClient.authentication")
	if !found {
		return nil
	}
	authDoc, isDoc := auth.(map[string]any)
	if !isDoc || len(authDoc) == 0 {
		return nil
	}

	username, _ := authDoc["username"].(string)
	password, _ := authDoc["password"].(string)
	ntlmHost, _ := authDoc["ntlmHost"].(string)
	ntlmDomain, _ := authDoc["ntlmDomain"].(string)

	switch {
	case ntlmHost != "" || ntlmDomain != "":
		if username == "" || password == "" || ntlmHost == "" || ntlmDomain == "" {
			return faults.NewTypedError(
				faults.ValidationError,
				"ntlm authentication requires username, password, ntlmHost and ntlmDomain",
				nil,
			)
		}
		authDoc["type"] = "ntlm"
	case username != "" || password != "":
		if username == "" || password == "" {
			return faults.NewTypedError(
				faults.ValidationError,
				"username authentication requires both username and password",
				nil,
			)
		}
		authDoc["type"] = "username"
	}
	return nil
}

// secondsToDays converts legacy second counts (stored as strings or
// integers) into the day counts the API expects. Partial days round up so
// a legacy value never silently loses retention time.
func secondsToDays(value resource.Value) (resource.Value, error) {
	var seconds int64
	switch typed := value.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return nil, faults.NewTypedError(faults.ValidationError, "criteria value is not an integer", err)
		}
		seconds = parsed
	case int64:
		seconds = typed
	case int:
		seconds = int64(typed)
	default:
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("criteria value has unsupported type %T", value),
			nil,
		)
	}

	const daySeconds = 86400
	days := seconds / daySeconds
	if seconds%daySeconds != 0 {
		days++
	}
	return days, nil
}

func upperString(value resource.Value) (resource.Value, error) {
	typed, isString := value.(string)
	if !isString {
		return value, nil
	}
	return strings.ToUpper(typed), nil
}
