// Package oscjson defines the two OSCQuery JSON documents: the HOST_INFO
// descriptor and the namespace tree.
//
// Field names are upper-case on the wire (FULL_PATH, ACCESS, CONTENTS, VALUE,
// TYPE, RANGE, DESCRIPTION and NAME, OSC_PORT, OSC_IP, OSC_TRANSPORT,
// EXTENSIONS) and must match exactly for third-party peers to interoperate.
//
// A namespace node is either a *Container (CONTENTS present, never a VALUE) or
// a *Leaf (no CONTENTS, optional VALUE). The Node interface is sealed so the
// two shapes cannot be mixed.
package oscjson
