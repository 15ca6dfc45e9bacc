package broker

// translateProperties turns the adapter's raw, driver-reported flag strings
// into the broker's fixed Properties bit set, mirroring the upstream
// get_characteristic_properties translation table. Unknown flags are
// ignored rather than rejected: a driver may report vendor flags the
// broker has no opinion about.
func translateProperties(flags []string) Properties {
	var p Properties
	for _, f := range flags {
		switch f {
		case "broadcast":
			p.Broadcast = true
		case "read":
			p.Read = true
		case "write_without_response":
			p.WriteWithoutResponse = true
		case "write":
			p.Write = true
		case "notify":
			p.Notify = true
		case "indicate":
			p.Indicate = true
		case "authenticated_signed_writes":
			p.AuthenticatedSignedWrites = true
		case "reliable_write":
			p.ReliableWrite = true
		case "writable_auxiliaries":
			p.WritableAuxiliaries = true
		}
	}
	return p
}
