package entity

// FileUpload is an uploaded file waiting to be handed to the artifact store
type FileUpload struct {
	FileName string
	Content  []byte
	MimeType string
}

// ArtifactRef is the stable reference returned by the artifact store
type ArtifactRef struct {
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	FileType  string `json:"file_type"`
	Size      int64  `json:"size"`
	PageCount int    `json:"page_count,omitempty"`
}

// ToDeliveryFile converts the reference into the persisted delivery file entry
func (r ArtifactRef) ToDeliveryFile() DeliveryFile {
	return DeliveryFile{
		FileName: r.FileName,
		FilePath: r.FilePath,
		FileType: r.FileType,
	}
}
