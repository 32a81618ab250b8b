// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package preverify defines the external preverifier contract (§6): given
// a program class's constant pool and a library's constant pool, a
// preverifier mutates each of the program's methods at class version ≥ 1.6
// to attach a StackMapTable. jbcasm calls it after assembly, and only when
// a classpath was supplied.
package preverify

import "github.com/jbcasm/jbcasm/pkg/classfile"

// Preverifier computes and attaches StackMapTable attributes to a class's
// methods. Implementations may need a library pool built from the
// classpath to resolve supertypes; pool is the class being preverified,
// library is the classpath's merged symbol table.
type Preverifier interface {
	Preverify(pool *classfile.ConstantPool, library *classfile.ConstantPool) error
}

// NopPreverifier implements Preverifier by doing nothing. It is the
// default when no classpath is supplied, per spec §6 ("called after
// assembly only if a library path is supplied") — no stack-map algorithm
// is in scope for this module.
type NopPreverifier struct{}

func (NopPreverifier) Preverify(pool *classfile.ConstantPool, library *classfile.ConstantPool) error {
	return nil
}
