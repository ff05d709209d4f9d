package models

import "strings"

// Wiser content and configuration table names. Item, detail, file and link
// tables may carry a per-module prefix (e.g. "shop_wiser_item") and may have an
// archive twin with the "archive" suffix.
const (
	TableWiserItem           = "wiser_item"
	TableWiserItemDetail     = "wiser_itemdetail"
	TableWiserItemFile       = "wiser_itemfile"
	TableWiserItemLink       = "wiser_itemlink"
	TableWiserItemLinkDetail = "wiser_itemlinkdetail"
	TableWiserHistory        = "wiser_history"
	TableWiserIDMappings     = "wiser_id_mappings"

	TableWiserEntity         = "wiser_entity"
	TableWiserEntityProperty = "wiser_entityproperty"
	TableWiserLink           = "wiser_link"
	TableWiserQuery          = "wiser_query"
	TableWiserModule         = "wiser_module"
	TableWiserDataSelector   = "wiser_data_selector"
	TableWiserPermission     = "wiser_permission"
	TableWiserUserRoles      = "wiser_user_roles"
	TableWiserFieldTemplates = "wiser_field_templates"
	TableWiserApiConnection  = "wiser_api_connection"

	ArchiveSuffix = "archive"
)

// archivableBases are the table families that have an archive twin.
var archivableBases = []string{
	TableWiserItemLinkDetail,
	TableWiserItemDetail,
	TableWiserItemLink,
	TableWiserItemFile,
	TableWiserItem,
}

// TablePrefix splits a possibly-prefixed wiser table name into its module
// prefix (including the trailing underscore) and reports whether the name
// belongs to the given base table family.
func TablePrefix(tableName, base string) (string, bool) {
	name := strings.TrimSuffix(strings.ToLower(tableName), ArchiveSuffix)
	if name == base {
		return "", true
	}
	if strings.HasSuffix(name, "_"+base) {
		return strings.TrimSuffix(name, base), true
	}
	return "", false
}

// ItemTablePrefix returns the module prefix for any table of the item family
// (item, detail, file, link, linkdetail), or ok=false for other tables.
func ItemTablePrefix(tableName string) (string, bool) {
	for _, base := range archivableBases {
		if prefix, ok := TablePrefix(tableName, base); ok {
			return prefix, true
		}
	}
	return "", false
}

// HasArchiveTwin reports whether the table belongs to a family that keeps an
// archive table alongside the live one.
func HasArchiveTwin(tableName string) bool {
	_, ok := ItemTablePrefix(tableName)
	return ok && !strings.HasSuffix(strings.ToLower(tableName), ArchiveSuffix)
}
