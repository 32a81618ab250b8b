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

package preverify_test

import (
	"testing"

	"github.com/jbcasm/jbcasm/pkg/classfile"
	"github.com/jbcasm/jbcasm/pkg/preverify"
)

func TestNopPreverifierDoesNothing(t *testing.T) {
	var pv preverify.Preverifier = preverify.NopPreverifier{}

	pool := classfile.NewConstantPool()
	before := pool.AddUtf8("Hello")

	library := classfile.NewConstantPool()
	if err := pv.Preverify(pool, library); err != nil {
		t.Fatalf("Preverify: %s", err)
	}

	after := pool.AddUtf8("Hello")
	if before != after {
		t.Fatalf("NopPreverifier mutated the pool: %d != %d", before, after)
	}
}
