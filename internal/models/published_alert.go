package models

import "time"

// PublishStatus is the state of one delivery channel on a tracking record.
type PublishStatus string

const (
	StatusPending    PublishStatus = "PENDING"
	StatusInProgress PublishStatus = "IN_PROGRESS"
	StatusSuccess    PublishStatus = "SUCCESS"
	StatusFailed     PublishStatus = "FAILED"
	StatusSkipped    PublishStatus = "SKIPPED"
)

// Channel names used as merge keys and in result events.
const (
	ChannelCellBroadcast = "cell_broadcast"
	ChannelFcm           = "fcm"
)

// PublishedAlert tracks the publishing lifecycle of one alert across all
// channels. There is exactly one record per alert ID; both channel goroutines
// and the retry sweep mutate it, serialized by the publisher's per-record lock.
type PublishedAlert struct {
	AlertID     string    `json:"alert_id"`
	Severity    string    `json:"severity"`
	AlertType   string    `json:"alert_type"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
	PublishedAt time.Time `json:"published_at"`

	CellBroadcastStatus    PublishStatus `json:"cell_broadcast_status"`
	FcmStatus              PublishStatus `json:"fcm_status"`
	CellBroadcastMessageID string        `json:"cell_broadcast_message_id,omitempty"`
	FcmMessageID           string        `json:"fcm_message_id,omitempty"`

	RecipientCount int    `json:"recipient_count"`
	SuccessCount   int    `json:"success_count"`
	FailureCount   int    `json:"failure_count"`
	ErrorMessage   string `json:"error_message,omitempty"`

	RetryCount  int        `json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
}

// ChannelStatus returns the stored status for the named channel.
func (p *PublishedAlert) ChannelStatus(channel string) PublishStatus {
	if channel == ChannelFcm {
		return p.FcmStatus
	}
	return p.CellBroadcastStatus
}

// SetChannelStatus sets the stored status for the named channel.
func (p *PublishedAlert) SetChannelStatus(channel string, status PublishStatus) {
	if channel == ChannelFcm {
		p.FcmStatus = status
		return
	}
	p.CellBroadcastStatus = status
}

// SetChannelMessageID records the transport message ID for the named channel.
func (p *PublishedAlert) SetChannelMessageID(channel, messageID string) {
	if channel == ChannelFcm {
		p.FcmMessageID = messageID
		return
	}
	p.CellBroadcastMessageID = messageID
}

// ChannelMessageID returns the stored message ID for the named channel.
func (p *PublishedAlert) ChannelMessageID(channel string) string {
	if channel == ChannelFcm {
		return p.FcmMessageID
	}
	return p.CellBroadcastMessageID
}

// HasFailedChannel reports whether any channel is in FAILED state.
func (p *PublishedAlert) HasFailedChannel() bool {
	return p.CellBroadcastStatus == StatusFailed || p.FcmStatus == StatusFailed
}

// ResultEvent is the outbound Kafka payload emitted once per channel
// completion, to the published or failed topic depending on outcome.
type ResultEvent struct {
	AlertID    string    `json:"alert_id"`
	Severity   string    `json:"severity"`
	AlertType  string    `json:"alert_type"`
	Message    string    `json:"message"`
	DetectedAt time.Time `json:"detected_at"`
	Channel    string    `json:"channel"`
	Success    bool      `json:"success"`
}

// PublishStats aggregates per-channel success counts over a trailing window.
type PublishStats struct {
	TotalPublished       int64 `json:"total_published"`
	CellBroadcastSuccess int64 `json:"cell_broadcast_success"`
	FcmSuccess           int64 `json:"fcm_success"`
}
