package packetsock

// options holds the configuration for a channel.
type options struct {
	logger Logger

	// onFault is called exactly once when a pipeline stage hits an
	// unrecoverable error. The channel is dead afterwards; the handler is
	// expected to close it, either directly or by unwinding to whoever owns
	// it. Closing the channel from inside the handler is supported.
	onFault func(error)

	// bufferSize is the per-direction packet queue depth. The default of 1
	// keeps at most one staged packet above the single in-flight frame.
	bufferSize int
}

// Option is a function that configures channel options.
type Option func(*options)

// defaultBufferSize is the default per-direction packet queue depth.
const defaultBufferSize = 1

// OnFaultOption returns an Option that sets the fault handler.
// The handler is required and must be provided before creating a channel.
// It is invoked at most once per channel, from the channel's own I/O
// goroutines, and may call Close on the channel before returning.
func OnFaultOption(cb func(error)) Option {
	return func(o *options) {
		o.onFault = cb
	}
}

// BufferSizeOption returns an Option that sets the per-direction packet
// queue depth. A larger queue lets more packets be staged before Send
// blocks; it does not change the one-frame-at-a-time wire discipline.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// checkOptions validates and sets default values for channel options.
func checkOptions(opts *options) error {
	if opts.onFault == nil {
		return ErrInvalidFaultHandler
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// validMTU reports whether n is a usable directional MTU. Zero is valid:
// a zero-MTU direction carries empty packets only.
func validMTU(n int) bool {
	return n >= 0 && n <= MaxPayload
}
