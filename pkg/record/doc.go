/*
Package record implements declarative binary structures. A Schema describes a
record's fields in wire order, then decodes byte streams into Records and
encodes Records back, so the layout is written once instead of twice in
hand-rolled read and write routines.

Schemas are built from field constructors and frozen by a Builder:

	header, err := record.NewBuilder("Header").
		Add(record.UInt32("magic", record.Const(uint32(0x4d494b45))),
			record.UInt16("len", record.ComputedBy(payloadLen)),
			record.Bytes("payload", record.SizeRef("len"))).
		Build()

Fields can depend on earlier fields on both directions: sizes and element
counts resolve through sibling values while loading, and while dumping a
computed field placed before its source still sees it, because explicit
values resolve ahead of policies. Conditional layouts hang off PresentIf
predicates, tagged ones off Union deciders.

Three sentinels keep the value model honest. Undefined is a slot nothing was
assigned or decoded into, NotPresent is a field a presence predicate turned
off, and logical null (decoded from a field's null pattern) is plain nil.
UseDefault can be assigned to request the field's default policy explicitly.

All errors wrap one of four category sentinels, ErrConfiguration,
ErrSerialization, ErrDeserialization and ErrValidation, with more specific
sentinels like ErrValueSize or ErrUnexpectedEOF layered on top, so callers
pick the granularity they test with errors.Is.
*/
package record
