package scaffold

const goBody = `package main

{{.Header}}

{{.Start}}
{{.Stub}}
{{.End}}

func main() {}
`

const goTests = `package main

import "testing"
{{range $i, $e := .Examples}}
func TestExample{{inc $i}}(t *testing.T) {
{{note "\t// " "Input: " $e.Input}}
{{note "\t// " "Output: " $e.Output}}
	t.Skip("call the solution with the input above and compare")
}
{{else}}
func TestExample(t *testing.T) {
	t.Skip("no worked examples in the description")
}
{{end -}}
`

const goMod = `module {{.Package}}

go 1.24
`

const pythonBody = `{{.Header}}

from typing import *
import unittest

{{.Start}}
{{.Stub}}
{{.End}}


class TestExamples(unittest.TestCase):
{{- range $i, $e := .Examples}}
    def test_example_{{inc $i}}(self):
{{note "        # " "Input: " $e.Input}}
{{note "        # " "Output: " $e.Output}}
        self.skipTest("run Solution on the input above and compare")
{{- else}}
    def test_example(self):
        self.skipTest("no worked examples in the description")
{{- end}}


if __name__ == "__main__":
    unittest.main()
`

const rustBody = `{{.Header}}

struct Solution;

{{.Start}}
{{.Stub}}
{{.End}}

fn main() {
    println!("Run with: cargo test");
}

#[cfg(test)]
mod tests {
    #[allow(unused_imports)]
    use super::*;
{{range $i, $e := .Examples}}
    #[test]
    #[ignore = "fill in the call for this example"]
    fn example_{{inc $i}}() {
{{note "        // " "Input: " $e.Input}}
{{note "        // " "Output: " $e.Output}}
    }
{{end -}}
}
`

const cargoToml = `[package]
name = "{{.Package}}"
version = "0.1.0"
edition = "2021"

[dependencies]
`

const cppBody = `{{.Header}}

#include <bits/stdc++.h>
using namespace std;

{{.Start}}
{{.Stub}}
{{.End}}

int main() {
{{- range $i, $e := .Examples}}
    // Example {{inc $i}}
{{note "    // " "Input: " $e.Input}}
{{note "    // " "Output: " $e.Output}}
    { Solution s; (void)s; }
{{- end}}
    return 0;
}
`
