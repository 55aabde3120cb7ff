package main

import (
	"flag"
	"fmt"
	"os"

	"glacia/pkg/compiler"
	"glacia/pkg/utils"
)

const testSource = `int square(int x) { return x * x; }
int main() {
	int i = 0;
	while (i < 3) { print(square(i)); i++; }
}
`

func main() {
	out := flag.String("o", "", "write the program image as JSON to this file")
	quiet := flag.Bool("q", false, "only write the image, skip the stage dumps")
	flag.Parse()

	src := testSource
	baseDir := "."
	if flag.NArg() > 0 {
		file, err := utils.ReadSource(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src, baseDir = file.Text, file.BaseDir
	}

	// Preprocess
	var err error
	src, err = compiler.Preprocess(src, baseDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preprocess error:", err)
		os.Exit(1)
	}

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	// Parse
	root, err := compiler.Parse(tokens)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	// Analyze
	prog, err := compiler.Analyze(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "semantic error:", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Printf("Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
		fmt.Println("Parse tree")
		fmt.Println(root)
		fmt.Println("AST")
		fmt.Print(prog)
		fmt.Println()
	}

	// Lower
	if err := compiler.Lower(prog); err != nil {
		fmt.Fprintln(os.Stderr, "lowering error:", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Println("Lowered AST")
		fmt.Print(prog)
		fmt.Println()
	}

	// Linearize
	img, err := compiler.Generate(prog)
	if err == nil {
		err = img.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "write error:", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := img.Write(f); err != nil {
			fmt.Fprintln(os.Stderr, "write error:", err)
			os.Exit(1)
		}
		fmt.Printf("%d functions, %d instructions -> %s\n", len(img.Functions), len(img.Instructions), *out)
		return
	}
	fmt.Println("Program image")
	if err := img.Write(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
		os.Exit(1)
	}
}
