package pipeline

// Kind identifies the input modality of a Request.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVoice Kind = "voice"
)

// Request is one sticker request. Build it with TextPrompt, ImageUpload or
// VoiceUpload; the constructor decides which fields are meaningful.
type Request struct {
	kind     Kind
	text     string
	data     []byte
	filename string
}

// TextPrompt requests a sticker generated from free text.
func TextPrompt(text string) Request {
	return Request{kind: KindText, text: text}
}

// ImageUpload requests a sticker made from an uploaded raster image.
func ImageUpload(data []byte, filename string) Request {
	return Request{kind: KindImage, data: data, filename: filename}
}

// VoiceUpload requests a sticker generated from a spoken description.
func VoiceUpload(data []byte, filename string) Request {
	return Request{kind: KindVoice, data: data, filename: filename}
}

// Kind returns the request modality.
func (r Request) Kind() Kind {
	return r.kind
}

// Filename returns the caller supplied file name of an upload.
func (r Request) Filename() string {
	return r.filename
}
