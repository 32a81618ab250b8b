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

package container_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbcasm/jbcasm/pkg/classfile"
	"github.com/jbcasm/jbcasm/pkg/container"
	"github.com/jbcasm/jbcasm/pkg/jbc"
)

const sourceText = `
public class Hello {
    public void <init> () {
        stack 1
        locals 1
        aload_0
        invokespecial java.lang.Object#void <init> ()
        return
    }
}
`

// A single .jbc file translates to a single .class file at the given
// output path.
func TestTranslateSingleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "Hello.jbc")
	out := filepath.Join(dir, "Hello.class")

	if err := os.WriteFile(in, []byte(sourceText), 0666); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	if err := container.Translate(in, out); err != nil {
		t.Fatalf("Translate: %s", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("opening translated output: %s", err)
	}
	defer f.Close()

	cf, err := classfile.Read(f)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	if cf.ClassName() != "Hello" {
		t.Fatalf("want class Hello, have %s", cf.ClassName())
	}
}

// A directory of mixed .jbc/.class/other entries is routed entry by
// entry, with each translated name swapping its extension and every
// other entry copied verbatim.
func TestTranslateDirectoryTree(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	if err := os.WriteFile(filepath.Join(in, "Hello.jbc"), []byte(sourceText), 0666); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	cf, err := jbc.Parse(strings.NewReader(sourceText))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	var classBuf bytes.Buffer
	if err := classfile.Write(&classBuf, cf); err != nil {
		t.Fatalf("Write: %s", err)
	}
	if err := os.WriteFile(filepath.Join(in, "Already.class"), classBuf.Bytes(), 0666); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	if err := os.WriteFile(filepath.Join(in, "README.txt"), []byte("hi\n"), 0666); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	if err := container.Translate(in, out); err != nil {
		t.Fatalf("Translate: %s", err)
	}

	if _, err := os.Stat(filepath.Join(out, "Hello.class")); err != nil {
		t.Fatalf("want Hello.class in output tree: %s", err)
	}
	if _, err := os.Stat(filepath.Join(out, "Already.jbc")); err != nil {
		t.Fatalf("want Already.jbc in output tree: %s", err)
	}
	txt, err := os.ReadFile(filepath.Join(out, "README.txt"))
	if err != nil {
		t.Fatalf("want README.txt copied verbatim: %s", err)
	}
	if string(txt) != "hi\n" {
		t.Fatalf("want copied contents preserved, have %q", txt)
	}
}
