// Package compiler turns glacia source text into a DBIL program image.
//
// Pipeline: source → Preprocess → Lex → Parse → Analyze → Restructure →
// Reduce → Parameterize → Sweeten → Generate → dbil.Image
package compiler
