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

package token_test

import (
	"strings"
	"testing"

	"github.com/jbcasm/jbcasm/pkg/token"
)

type testCase struct {
	Name   string
	Input  string
	Tokens []token.Token
}

type failCase struct {
	Name  string
	Input string
}

func testSourceSuccess(t *testing.T, test *testCase) {
	src := token.NewSource(strings.NewReader(test.Input))

	for i, want := range test.Tokens {
		have, err := src.Next()
		if err != nil {
			t.Fatalf("token %d: unexpected error: %s", i, err)
		}
		if have.Type != want.Type {
			t.Fatalf(
				"token %d: wrong type\nwant:%s\nhave:%s",
				i, want.Type, have.Type,
			)
		}
		if have != want {
			t.Fatalf(
				"token %d: wrong value\nwant:%#v\nhave:%#v",
				i, want, have,
			)
		}
	}

	last, err := src.Next()
	if err != nil {
		t.Fatalf("unexpected error reading trailing EOF: %s", err)
	}
	if last.Type != token.EOF {
		t.Fatalf("want trailing EOF, have %s", last.Type)
	}
}

func testSourceFailure(t *testing.T, test *failCase) {
	src := token.NewSource(strings.NewReader(test.Input))

	for {
		tok, err := src.Next()
		if err != nil {
			return
		}
		if tok.Type == token.EOF {
			t.Fatalf("want error, have clean EOF")
		}
	}
}

func TestWords(t *testing.T) {
	tests := []testCase{
		{
			Name:  "plain word",
			Input: "aload_0",
			Tokens: []token.Token{
				{Type: token.Word, Line: 1, Word: "aload_0"},
			},
		},
		{
			Name:  "word with slashes and dollar",
			Input: "java/lang/String$Inner",
			Tokens: []token.Token{
				{Type: token.Word, Line: 1, Word: "java"},
				{Type: token.Punct, Line: 1, Punct: '/'},
				{Type: token.Word, Line: 1, Word: "lang"},
				{Type: token.Punct, Line: 1, Punct: '/'},
				{Type: token.Word, Line: 1, Word: "String$Inner"},
			},
		},
		{
			Name:  "leading dot and dash",
			Input: ".line -label",
			Tokens: []token.Token{
				{Type: token.Word, Line: 1, Word: ".line"},
				{Type: token.Word, Line: 1, Word: "-label"},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			testSourceSuccess(t, &test)
		})
	}
}

func TestNumbers(t *testing.T) {
	tests := []testCase{
		{
			Name:  "integer",
			Input: "42",
			Tokens: []token.Token{
				{Type: token.Number, Line: 1, Number: 42},
			},
		},
		{
			Name:  "negative integer",
			Input: "-42",
			Tokens: []token.Token{
				{Type: token.Number, Line: 1, Number: -42},
			},
		},
		{
			Name:  "float",
			Input: "3.14",
			Tokens: []token.Token{
				{Type: token.Number, Line: 1, Number: 3.14},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			testSourceSuccess(t, &test)
		})
	}
}

func TestStringsAndChars(t *testing.T) {
	tests := []testCase{
		{
			Name:  "plain string",
			Input: `"hello"`,
			Tokens: []token.Token{
				{Type: token.QuotedString, Line: 1, String: "hello"},
			},
		},
		{
			Name:  "escaped string",
			Input: `"a\nb\tc\"d"`,
			Tokens: []token.Token{
				{Type: token.QuotedString, Line: 1, String: "a\nb\tc\"d"},
			},
		},
		{
			Name:  "octal escape",
			Input: `"\101"`,
			Tokens: []token.Token{
				{Type: token.QuotedString, Line: 1, String: "A"},
			},
		},
		{
			Name:  "plain char",
			Input: `'x'`,
			Tokens: []token.Token{
				{Type: token.QuotedChar, Line: 1, Char: 'x'},
			},
		},
		{
			Name:  "escaped char",
			Input: `'\n'`,
			Tokens: []token.Token{
				{Type: token.QuotedChar, Line: 1, Char: '\n'},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			testSourceSuccess(t, &test)
		})
	}
}

func TestComments(t *testing.T) {
	tests := []testCase{
		{
			Name:  "line comment",
			Input: "aload_0 // trailing comment\nreturn",
			Tokens: []token.Token{
				{Type: token.Word, Line: 1, Word: "aload_0"},
				{Type: token.Word, Line: 2, Word: "return"},
			},
		},
		{
			Name:  "block comment spanning lines",
			Input: "aload_0 /* a\nb\nc */ return",
			Tokens: []token.Token{
				{Type: token.Word, Line: 1, Word: "aload_0"},
				{Type: token.Word, Line: 3, Word: "return"},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			testSourceSuccess(t, &test)
		})
	}
}

func TestPushBack(t *testing.T) {
	src := token.NewSource(strings.NewReader("foo bar"))

	first, err := src.Next()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if first.Word != "foo" {
		t.Fatalf("want foo, have %s", first.Word)
	}

	src.PushBack()

	again, err := src.Next()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if again != first {
		t.Fatalf("pushed-back token did not replay identically\nwant:%#v\nhave:%#v", first, again)
	}

	second, err := src.Next()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if second.Word != "bar" {
		t.Fatalf("want bar, have %s", second.Word)
	}
}

func TestInvalidEscapes(t *testing.T) {
	tests := []failCase{
		{
			Name:  "unterminated string",
			Input: `"unterminated`,
		},
		{
			Name:  "unterminated char",
			Input: `'x`,
		},
		{
			Name:  "unknown escape",
			Input: `"\q"`,
		},
		{
			Name:  "octal overflow",
			Input: `"\777"`,
		},
		{
			Name:  "unterminated block comment",
			Input: "/* never closes",
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			testSourceFailure(t, &test)
		})
	}
}
