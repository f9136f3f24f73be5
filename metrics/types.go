// Package metrics defines the types and constants used for metric collection and reporting.
package metrics

// Policy defines the aggregation policy for metric values.
// It determines how multiple values for the same metric should be combined over a time window.
type Policy int

const (
	Policy_None      Policy = iota // Policy_None indicates no specific aggregation policy. The reporting system may use a default.
	Policy_Set                     // Policy_Set represents an instantaneous value; the last reported value wins.
	Policy_Sum                     // Policy_Sum represents a cumulative value, summing all reported values.
	Policy_Avg                     // Policy_Avg represents the average of all reported values.
	Policy_Max                     // Policy_Max represents the maximum value among all reported values.
	Policy_Min                     // Policy_Min represents the minimum value among all reported values.
	Policy_Stopwatch               // Policy_Stopwatch is for timing metrics, measuring event durations.
)

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs.
// Dimensions provide contextual information for metrics, such as message name or remote address.
type Dimension map[string]string

const (
	// KB represents a kilobyte (1024 bytes).
	KB = 1024.0
	// MB represents a megabyte (1024 * 1024 bytes).
	MB = 1024.0 * 1024.0
)

// Group related constants, prefixed with Group.
const (
	// GroupNet is the group for transport and dispatch metrics.
	GroupNet = "net"
	// GroupCodec is the group for record encode and parse metrics.
	GroupCodec = "codec"
	// GroupFramelib is the group for framework internals such as object pools.
	GroupFramelib = "framelib"
)

// Metric related constants
const (
	// NameTransportStartTotal: Total number of transport starts.
	// group:net
	NameTransportStartTotal = "transport_start_total"

	// NameConnectionTotal: Total number of accepted connections.
	// group:net
	NameConnectionTotal = "connection_total"

	// NameConnectionCloseTotal: Total number of closed connections.
	// group:net
	NameConnectionCloseTotal = "connection_close_total"

	// NameCurrentConnections: Number of currently open connections.
	// group:net
	NameCurrentConnections = "current_connections"

	// NameDatagramTotal: Total number of datagrams read from the socket.
	// group:net
	NameDatagramTotal = "datagram_total"

	// NameParseErrorTotal: Total number of frames the parser rejected.
	// group:net
	NameParseErrorTotal = "parse_error_total"

	// NameIncompleteFrameTotal: Total number of truncated frames.
	// group:net
	NameIncompleteFrameTotal = "incomplete_frame_total"

	// NameHandlerPanicTotal: Total number of panics recovered from handlers.
	// group:net
	NameHandlerPanicTotal = "handler_panic_total"

	// NameDispatchTotal: Total number of deliveries entering the dispatcher.
	// group:net dimension:msgname
	NameDispatchTotal = "dispatch_total"

	// NameDispatchErrorTotal: Total number of deliveries whose handler returned an error.
	// group:net dimension:msgname
	NameDispatchErrorTotal = "dispatch_error_total"

	// NameFilteredTotal: Total number of deliveries dropped by the name filter.
	// group:net dimension:msgname
	NameFilteredTotal = "filtered_total"

	// NameSendQueueFullTotal: Total number of outbound frames dropped on a full send queue.
	// group:net
	NameSendQueueFullTotal = "send_queue_full_total"

	// NamePoolCreateTotal: Total number of objects allocated because a pool was empty.
	// group:framelib dimension:pool
	NamePoolCreateTotal = "pool_create_total"

	// NameParseTotal: Total number of parser invocations by outcome.
	// group:codec dimension:result
	NameParseTotal = "parse_total"

	// NameSerializeTotal: Total number of records serialized.
	// group:codec
	NameSerializeTotal = "serialize_total"

	// NameCoerceErrorTotal: Total number of rejected field assignments.
	// group:codec
	NameCoerceErrorTotal = "coerce_error_total"

	// NameWarningTotal: Total number of codec warnings by kind.
	// group:codec dimension:kind
	NameWarningTotal = "warning_total"
)

// Dimension related definitions, must be prefixed with Dim. The comment should include the group.
const (
	// DimMsgName is the dimension for the registered message name.
	// group:net
	DimMsgName = "msgname"
	// DimRemote is the dimension for the remote address.
	// group:net
	DimRemote = "remote"
	// DimPoolName is the dimension for the object pool name.
	// group:framelib
	DimPoolName = "pool"
	// DimResult is the dimension for the parser outcome.
	// group:codec
	DimResult = "result"
	// DimWarnKind is the dimension for the codec warning kind.
	// group:codec
	DimWarnKind = "kind"
)
