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

// Package container routes the CLI's input/output pair per spec §6: input
// and output are each interchangeably a single file or a directory tree,
// and each entry is dispatched by extension (.class → disassemble, .jbc →
// assemble, other → copy verbatim). JAR/JMOD/ZIP unpacking is an explicit
// Non-goal and stays out of this package.
package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbcasm/jbcasm/pkg/classfile"
	"github.com/jbcasm/jbcasm/pkg/jbc"
	"github.com/jbcasm/jbcasm/pkg/preverify"
)

// Translate routes input to output with no preverification, the shape
// used when the caller supplied no classpath.
func Translate(input, output string) error {
	return TranslateWithPreverify(input, output, nil, nil)
}

// TranslateWithPreverify routes input to output. If input is a single
// file, output names the single translated file. If input is a
// directory, output names the root of a mirrored tree, one translated
// entry per input file. pv, when non-nil, is run against library after
// every .jbc entry is assembled, per spec §6 ("called after assembly
// only if a library path is supplied").
func TranslateWithPreverify(input, output string, pv preverify.Preverifier, library *classfile.ConstantPool) error {
	stat, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	if !stat.IsDir() {
		return translateFile(input, output, pv, library)
	}

	return filepath.Walk(input, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(input, path)
		if err != nil {
			return err
		}

		return translateFile(path, filepath.Join(output, translatedName(rel)), pv, library)
	})
}

// translatedName swaps a routed entry's extension to match the direction
// of translation it is about to undergo; copied entries keep their name.
func translatedName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".class":
		return strings.TrimSuffix(name, filepath.Ext(name)) + ".jbc"
	case ".jbc":
		return strings.TrimSuffix(name, filepath.Ext(name)) + ".class"
	default:
		return name
	}
}

func translateFile(src, dst string, pv preverify.Preverifier, library *classfile.ConstantPool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	switch strings.ToLower(filepath.Ext(src)) {
	case ".class":
		return jbc.Disassemble(in, out)
	case ".jbc":
		return assembleFile(in, out, pv, library)
	default:
		_, err := io.Copy(out, in)
		return err
	}
}

func assembleFile(r io.Reader, w io.Writer, pv preverify.Preverifier, library *classfile.ConstantPool) error {
	cf, err := jbc.Parse(r)
	if err != nil {
		return err
	}
	if pv != nil {
		if err := pv.Preverify(cf.Pool, library); err != nil {
			return err
		}
	}
	return classfile.Write(w, cf)
}
