package ebpf

// bpffs pins provisioned by the host for the listener socket group
const (
	SelectorProgPin string = "/sys/fs/bpf/segmentd_reuseport_select"
	DrainMapPin     string = "/sys/fs/bpf/segmentd_draining_sockets"
)

// Map value for a socket that must not receive new datagrams
const drainingMark uint8 = 1
