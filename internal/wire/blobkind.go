package wire

// BlobKind classifies a blob event for the UI, independent of the blob
// store itself (which is kind-agnostic and addresses everything by hash).
type BlobKind byte

const (
	BlobKindImage BlobKind = iota
	BlobKindBigImage
	BlobKindFile
	BlobKindAudio
	BlobKindVideo
	BlobKindOther
)

func (k BlobKind) String() string {
	switch k {
	case BlobKindImage:
		return "image"
	case BlobKindBigImage:
		return "big_image"
	case BlobKindFile:
		return "file"
	case BlobKindAudio:
		return "audio"
	case BlobKindVideo:
		return "video"
	case BlobKindOther:
		return "other"
	default:
		return "unknown"
	}
}
