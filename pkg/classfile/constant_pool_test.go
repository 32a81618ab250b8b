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

package classfile_test

import (
	"testing"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

func TestConstantPoolDedup(t *testing.T) {
	pool := classfile.NewConstantPool()

	a := pool.AddUtf8("java/lang/Object")
	b := pool.AddUtf8("java/lang/Object")
	if a != b {
		t.Fatalf("AddUtf8 did not dedup: %d != %d", a, b)
	}

	ca := pool.AddClass("java/lang/Object")
	cb := pool.AddClass("java/lang/Object")
	if ca != cb {
		t.Fatalf("AddClass did not dedup: %d != %d", ca, cb)
	}

	ma := pool.AddMethodref("java/lang/Object", "<init>", "()V")
	mb := pool.AddMethodref("java/lang/Object", "<init>", "()V")
	if ma != mb {
		t.Fatalf("AddMethodref did not dedup: %d != %d", ma, mb)
	}
}

func TestConstantPoolInvokeDynamicNeverDedups(t *testing.T) {
	pool := classfile.NewConstantPool()

	a := pool.AddInvokeDynamic(0, "foo", "()V")
	b := pool.AddInvokeDynamic(0, "foo", "()V")
	if a == b {
		t.Fatalf("AddInvokeDynamic deduped identical call sites: both %d", a)
	}
}

func TestConstantPoolLongDoubleWideSlot(t *testing.T) {
	pool := classfile.NewConstantPool()

	longIdx := pool.AddLong(1)
	afterLong := pool.AddUtf8("after-long")

	if afterLong != longIdx+2 {
		t.Fatalf(
			"long entry did not consume two slots: long=%d, next=%d",
			longIdx, afterLong,
		)
	}

	doubleIdx := pool.AddDouble(1.5)
	afterDouble := pool.AddUtf8("after-double")

	if afterDouble != doubleIdx+2 {
		t.Fatalf(
			"double entry did not consume two slots: double=%d, next=%d",
			doubleIdx, afterDouble,
		)
	}

	if _, err := pool.Get(longIdx + 1); err == nil {
		t.Fatalf("want error reading the reserved second slot of a long entry")
	}
}

func TestConstantPoolLookups(t *testing.T) {
	pool := classfile.NewConstantPool()

	classIdx := pool.AddClass("java/lang/String")
	name, err := pool.ClassName(classIdx)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if name != "java/lang/String" {
		t.Fatalf("want java/lang/String, have %s", name)
	}

	ntIdx := pool.AddNameAndType("length", "()I")
	gotName, gotDesc, err := pool.NameAndType(ntIdx)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gotName != "length" || gotDesc != "()I" {
		t.Fatalf("want length/()I, have %s/%s", gotName, gotDesc)
	}
}

func TestConstantPoolOutOfRange(t *testing.T) {
	pool := classfile.NewConstantPool()
	pool.AddUtf8("x")

	if _, err := pool.Get(0); err == nil {
		t.Fatalf("want error reading reserved slot 0")
	}
	if _, err := pool.Get(99); err == nil {
		t.Fatalf("want error reading out-of-range index")
	}
}
