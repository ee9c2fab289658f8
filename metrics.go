package packetsock

import "github.com/VictoriaMetrics/metrics"

// Package-wide counters, exposable through metrics.WritePrometheus.
var (
	framesSent     = metrics.NewCounter("packetsock_frames_sent_total")
	framesReceived = metrics.NewCounter("packetsock_frames_received_total")
	bytesSent      = metrics.NewCounter("packetsock_bytes_sent_total")
	bytesReceived  = metrics.NewCounter("packetsock_bytes_received_total")
	channelFaults  = metrics.NewCounter("packetsock_channel_faults_total")
	channelsOpened = metrics.NewCounter("packetsock_channels_opened_total")
)
