package session

// ChunkType tags what an outgoing message carries so errors can be routed by the owner.
type ChunkType int

const (
	TextMessage ChunkType = iota
	IsComposing
	MessageDisplayedReport
	MessageDeliveredReport
	OtherMessageDeliveredReportStatus
	FileSharing
	HttpFileSharing
	ImageTransfer
	EmptyChunk
	GeoLocation
	StatusReport
	Unknown
)

var chunkTypeNames = [...]string{
	TextMessage:                       "text-message",
	IsComposing:                       "is-composing",
	MessageDisplayedReport:            "message-displayed-report",
	MessageDeliveredReport:            "message-delivered-report",
	OtherMessageDeliveredReportStatus: "other-message-delivered-report-status",
	FileSharing:                       "file-sharing",
	HttpFileSharing:                   "http-file-sharing",
	ImageTransfer:                     "image-transfer",
	EmptyChunk:                        "empty-chunk",
	GeoLocation:                       "geo-location",
	StatusReport:                      "status-report",
	Unknown:                           "unknown",
}

func (c ChunkType) String() string {
	if c < 0 || int(c) >= len(chunkTypeNames) {
		return "unknown"
	}
	return chunkTypeNames[c]
}

// ParseChunkType maps a name produced by String back to its ChunkType.
func ParseChunkType(name string) (ChunkType, bool) {
	for i, n := range chunkTypeNames {
		if n == name {
			return ChunkType(i), true
		}
	}
	return Unknown, false
}
