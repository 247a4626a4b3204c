// Package ir defines the intermediate representation executed by the vm
// package: a routine table, a constant pool and an entry routine.
//
// # Addressing
//
// Statements reach data through two operand forms. A Source is a pointer
// expression, a register or a literal; a Destination is a pointer expression
// or a register. A pointer expression names a Space and a 16-bit base address
// and may carry an 8-bit index source that is added to the base:
//
//	effective = Addr + read8(Index)
//
// The width of every operand (8 or 16 bits) is fixed by the statement's op,
// never by the operand itself. 16-bit values are stored with the program's
// ByteOrder, both in the constant pool and in the machine's memory.
//
// # Spaces
//
//   - Absolute: program-chosen address in the static array
//   - Static: compiler-chosen address in the same static array
//   - Const: the program's constant pool, read only
//   - Stack: the active call frame
//   - Return: a durable array callees use to hand values back
//
// # Serialization
//
// Programs are stored as canonical CBOR (see Marshal). The same encoding is
// hashed by Hash so traces can be keyed by program content.
package ir
