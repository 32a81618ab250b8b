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

package jbc

import "github.com/jbcasm/jbcasm/pkg/classfile"

// accessKeywords are the keywords ExpectClassAccessFlags and
// ExpectAccessFlags (§4.2) recognise, each mapped to the access flag
// bit it sets. Class-kind keywords additionally imply further flags; that
// desugaring lives in ExpectClassAccessFlags, not in this table.
var accessKeywords = map[string]uint16{
	"public":       classfile.AccPublic,
	"private":      classfile.AccPrivate,
	"protected":    classfile.AccProtected,
	"static":       classfile.AccStatic,
	"final":        classfile.AccFinal,
	"super":        classfile.AccSuper,
	"synchronized": classfile.AccSynchronized,
	"volatile":     classfile.AccVolatile,
	"transient":    classfile.AccTransient,
	"bridge":       classfile.AccBridge,
	"varargs":      classfile.AccVarargs,
	"native":       classfile.AccNative,
	"abstract":     classfile.AccAbstract,
	"strictfp":     classfile.AccStrict,
	"synthetic":    classfile.AccSynthetic,
	"mandated":     classfile.AccMandated,
	"open":         classfile.AccOpen,
	"transitive":   classfile.AccTransitive,
	"static_phase": classfile.AccStaticPhase,
}

// accessFlagOrder is the canonical emission order for the printer (§4.10).
var accessFlagOrder = []struct {
	flag uint16
	name string
}{
	{classfile.AccPublic, "public"},
	{classfile.AccPrivate, "private"},
	{classfile.AccProtected, "protected"},
	{classfile.AccStatic, "static"},
	{classfile.AccFinal, "final"},
	{classfile.AccSuper, "super"}, // also synchronized, same bit
	{classfile.AccVolatile, "volatile"}, // also bridge, same bit
	{classfile.AccTransient, "transient"}, // also varargs, same bit
	{classfile.AccNative, "native"},
	{classfile.AccAbstract, "abstract"},
	{classfile.AccStrict, "strictfp"},
	{classfile.AccSynthetic, "synthetic"},
	{classfile.AccEnum, "enum"}, // also annotation, same bit
	{classfile.AccMandated, "mandated"}, // also module, same bit
	{classfile.AccOpen, "open"}, // also transitive, same bit
	{classfile.AccStaticPhase, "static_phase"},
}

// referenceKindKeywords maps the method-handle reference-kind keyword set
// of §6 to its JVM reference_kind byte. newinvokespecial is one of the
// SUPPLEMENTED FEATURES carried over from the original implementation's
// AssemblyConstants.
var referenceKindKeywords = map[string]byte{
	"getfield":         classfile.RefGetField,
	"getstatic":        classfile.RefGetStatic,
	"putfield":         classfile.RefPutField,
	"putstatic":        classfile.RefPutStatic,
	"invokevirtual":    classfile.RefInvokeVirtual,
	"invokestatic":     classfile.RefInvokeStatic,
	"invokespecial":    classfile.RefInvokeSpecial,
	"newinvokespecial": classfile.RefNewInvokeSpecial,
	"invokeinterface":  classfile.RefInvokeInterface,
}

var referenceKindNames = func() map[byte]string {
	m := make(map[byte]string, len(referenceKindKeywords))
	for k, v := range referenceKindKeywords {
		m[v] = k
	}
	return m
}()

// attributeKeywords are the keywords the Attribute Parser dispatches on
// (§4.5/§6). Inline-only attributes (ConstantValue, MethodParameters,
// Exceptions, StackMap(Table), Line/LocalVariable(Type)Table) have no
// entry here: they are never introduced by a keyword inside `[ ... ]`.
var attributeKeywords = map[string]bool{
	"BootstrapMethods":                      true,
	"SourceFile":                            true,
	"SourceDir":                             true,
	"InnerClasses":                          true,
	"EnclosingMethod":                       true,
	"NestHost":                              true,
	"NestMembers":                           true,
	"Deprecated":                            true,
	"Synthetic":                             true,
	"Signature":                             true,
	"RuntimeVisibleAnnotations":             true,
	"RuntimeInvisibleAnnotations":           true,
	"RuntimeVisibleParameterAnnotations":    true,
	"RuntimeInvisibleParameterAnnotations":  true,
	"RuntimeVisibleTypeAnnotations":         true,
	"RuntimeInvisibleTypeAnnotations":       true,
	"AnnotationDefault":                     true,
	"Module":                                true,
	"ModuleMainClass":                       true,
	"ModulePackages":                        true,
}

// targetInfoKeywords are the type-annotation target_info keywords of §6,
// mapped to the target_type byte they produce (JVM spec table 4.7.20-C).
var targetInfoKeywords = map[string]byte{
	"parameter_generic_class":                    0x00,
	"parameter_generic_method":                   0x01,
	"extends":                                    0x10,
	"bound_generic_class":                        0x11,
	"bound_generic_method":                       0x12,
	"field":                                      0x13,
	"return":                                     0x14,
	"receiver":                                   0x15,
	"parameter":                                  0x16,
	"throws":                                     0x17,
	"local_variable":                             0x40,
	"resource_variable":                          0x41,
	"catch":                                      0x42,
	"instance_of":                                0x43,
	"new":                                        0x44,
	"method_reference_new":                       0x45,
	"method_reference":                           0x46,
	"cast":                                       0x47,
	"argument_generic_method_new":                0x48,
	"argument_generic_method":                    0x49,
	"argument_generic_method_reference_new":      0x4A,
	"argument_generic_method_reference":          0x4B,
}

// typePathKeywords are the type_path kind keywords of §6, mapped to the
// type_path_kind byte of JVM spec table 4.7.20.2-A.
var typePathKeywords = map[string]byte{
	"array":         0,
	"inner_type":    1,
	"wildcard":      2,
	"type_argument": 3,
}

var targetInfoNames = func() map[byte]string {
	m := make(map[byte]string, len(targetInfoKeywords))
	for k, v := range targetInfoKeywords {
		m[v] = k
	}
	return m
}()

var typePathNames = func() map[byte]string {
	m := make(map[byte]string, len(typePathKeywords))
	for k, v := range typePathKeywords {
		m[v] = k
	}
	return m
}()

// castTypes are the explicit-cast loadable-constant type keywords of §4.3.
var castTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
	"String": true, "Class": true, "MethodHandle": true,
	"MethodType": true, "Dynamic": true,
}
