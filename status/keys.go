package status

// Metric keys published by the pipeline, grouped by the subsystem that owns them
// Keys share a dotted prefix per subsystem so telemetry clients can filter
const (
	// Packet queue, written by the render thread during Drain except packets.queued
	PacketsQueued       = "packets.queued"        // int, total accepted from any thread
	PacketsReplayed     = "packets.replayed"      // int, Update calls including faulted
	PacketsFaulted      = "packets.faulted"       // int, errors and recovered panics
	PacketsPending      = "packets.pending"       // int, left for the next tick
	PacketsAfterDestroy = "packets.after_destroy" // int, replayed for a retired owner

	// Asset integration queue
	AssetsProcessed     = "assets.processed"      // int, steps run
	AssetsFaulted       = "assets.faulted"        // int, items dropped on error
	AssetsTasks         = "assets.tasks"          // int, unconditional actions run
	AssetsPendingHigh   = "assets.pending.high"   // int, high lane depth
	AssetsPendingNormal = "assets.pending.normal" // int, normal lane depth

	// Render context and task queue
	RenderEnqueued         = "render.enqueued"          // int, tasks accepted
	RenderCompleted        = "render.completed"         // int, futures resolved
	RenderFaulted          = "render.faulted"           // int, futures faulted
	RenderSwaps            = "render.swaps"             // int, buffer swaps
	RenderPhase            = "render.phase"             // string, double-buffer phase
	RenderImmediate        = "render.immediate"         // int, synchronous renders
	RenderWide             = "render.wide"              // int, cubemap renders
	RenderImmediateFaulted = "render.immediate_faulted" // int, synchronous render errors

	// Host frame loop
	HostFrames           = "host.frames"            // int, render ticks
	HostTickMS           = "host.tick_ms"           // float, last tick duration
	HostTickPeakMS       = "host.tick_peak_ms"      // float, longest tick seen
	HostAssetsIntegrated = "host.assets_integrated" // int, asset steps reported by the notifier

	// Simulation scheduler
	SimTicks  = "sim.ticks"  // int, updates run
	SimFaults = "sim.faults" // int, updates that failed or panicked
)

// Subsystem prefixes accepted by Registry.SnapshotPrefix
const (
	PrefixPackets = "packets."
	PrefixAssets  = "assets."
	PrefixRender  = "render."
	PrefixHost    = "host."
	PrefixSim     = "sim."
)
