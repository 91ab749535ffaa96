package ociref

// MediaType is the closed set of media types the registry store, the
// distribution surface and the layer unpacker dispatch on.
type MediaType string

const (
	MediaTypeImageIndex     MediaType = "application/vnd.oci.image.index.v1+json"
	MediaTypeImageManifest  MediaType = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeImageConfig    MediaType = "application/vnd.oci.image.config.v1+json"
	MediaTypeImageLayer     MediaType = "application/vnd.oci.image.layer.v1.tar"
	MediaTypeImageLayerGzip MediaType = "application/vnd.oci.image.layer.v1.tar+gzip"
	MediaTypeImageLayerZstd MediaType = "application/vnd.oci.image.layer.v1.tar+zstd"
	MediaTypeTagList        MediaType = "application/json"
)

// IsLayer reports whether m names one of the three layer encodings.
func (m MediaType) IsLayer() bool {
	switch m {
	case MediaTypeImageLayer, MediaTypeImageLayerGzip, MediaTypeImageLayerZstd:
		return true
	default:
		return false
	}
}
