package kernel

// Synchronization primitives are declared so task code can name them; none
// of them has operations yet.
type (
	Semaphore    struct{}
	Mutex        struct{}
	Barrier      struct{}
	MessageQueue struct{}
)
