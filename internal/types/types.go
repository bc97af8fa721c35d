package types

// MasterlistImportParams defines the input of the masterlist import workflow.
type MasterlistImportParams struct {
	FileURI  string `json:"file_uri"`  // file:// or s3:// path to the archived masterlist
	FileName string `json:"file_name"` // original upload name; its extension selects the parser
}

// ParsedMasterlist is handed from the parse activity to the save activity.
// The rows stay in the object store at RowsURI, one JSON TagRow per line.
type ParsedMasterlist struct {
	FileName string `json:"file_name"`
	FileURI  string `json:"file_uri"`
	RowsURI  string `json:"rows_uri"`
	TagCount int    `json:"tag_count"`
}

// MasterlistImportResult is the workflow result reported by the status endpoint.
type MasterlistImportResult struct {
	FileID       int64  `json:"file_id"`
	FileName     string `json:"file_name"`
	TagsImported int64  `json:"tags_imported"`
}
