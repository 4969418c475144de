package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantFailure string
		checkFn     func(t *testing.T, req *Request)
	}{
		{
			name:  "exit",
			input: `{"type":"exit"}`,
			checkFn: func(t *testing.T, req *Request) {
				if req.Kind != KindExit {
					t.Errorf("want kind=exit, got %s", req.Kind)
				}
				if req.Command != nil {
					t.Error("exit request should carry no command")
				}
			},
		},
		{
			name:  "command with empty envp",
			input: `{"type":"command","path":"/bin/true","argv":["true"],"envp":[]}` + "\n",
			checkFn: func(t *testing.T, req *Request) {
				if req.Kind != KindCommand {
					t.Fatalf("want kind=command, got %s", req.Kind)
				}
				cmd := req.Command
				if cmd.Path != "/bin/true" {
					t.Errorf("want path=/bin/true, got %s", cmd.Path)
				}
				if len(cmd.Argv) != 1 || cmd.Argv[0] != "true" {
					t.Errorf("argv not parsed: %v", cmd.Argv)
				}
				if !cmd.EnvpSet {
					t.Error("empty envp should still count as supplied")
				}
				if len(cmd.Envp) != 0 {
					t.Errorf("want empty envp, got %v", cmd.Envp)
				}
			},
		},
		{
			name:  "command with envp",
			input: `{"type":"command","path":"/usr/bin/env","argv":["env","-0"],"envp":["A=1","B="]}`,
			checkFn: func(t *testing.T, req *Request) {
				cmd := req.Command
				if len(cmd.Argv) != 2 || cmd.Argv[1] != "-0" {
					t.Errorf("argv order not preserved: %v", cmd.Argv)
				}
				if len(cmd.Envp) != 2 || cmd.Envp[0] != "A=1" || cmd.Envp[1] != "B=" {
					t.Errorf("envp not parsed: %v", cmd.Envp)
				}
			},
		},
		{
			name:  "command without envp inherits",
			input: `{"type":"command","path":"/bin/true","argv":["true"]}`,
			checkFn: func(t *testing.T, req *Request) {
				if req.Command.EnvpSet {
					t.Error("absent envp should not be marked as supplied")
				}
			},
		},
		{
			name:  "crlf terminated",
			input: "{\"type\":\"exit\"}\r\n",
			checkFn: func(t *testing.T, req *Request) {
				if req.Kind != KindExit {
					t.Errorf("want kind=exit, got %s", req.Kind)
				}
			},
		},
		{name: "not json", input: "not json", wantFailure: "malformed request"},
		{name: "empty line", input: "\n", wantFailure: "empty request"},
		{name: "whitespace line", input: "   \t", wantFailure: "empty request"},
		{name: "json array", input: `["exit"]`, wantFailure: "malformed request"},
		{name: "json null", input: `null`, wantFailure: "missing type"},
		{name: "missing type", input: `{"path":"/bin/true"}`, wantFailure: "missing type"},
		{name: "unknown type", input: `{"type":"reboot"}`, wantFailure: "unknown type"},
		{name: "unknown field", input: `{"type":"exit","force":true}`, wantFailure: "unknown field"},
		{name: "exit with payload", input: `{"type":"exit","path":"/bin/true"}`, wantFailure: "exit takes no fields"},
		{name: "trailing data", input: `{"type":"exit"} {"type":"exit"}`, wantFailure: "trailing data"},
		{name: "command missing path", input: `{"type":"command","argv":["x"]}`, wantFailure: "non-empty path"},
		{name: "command empty path", input: `{"type":"command","path":"","argv":["x"]}`, wantFailure: "non-empty path"},
		{name: "command missing argv", input: `{"type":"command","path":"/bin/true"}`, wantFailure: "non-empty argv"},
		{name: "command empty argv", input: `{"type":"command","path":"/bin/true","argv":[]}`, wantFailure: "non-empty argv"},
		{name: "argv wrong type", input: `{"type":"command","path":"/bin/true","argv":"true"}`, wantFailure: "malformed request"},
		{name: "nul in argv", input: `{"type":"command","path":"/bin/echo","argv":["echo","a\u0000b"]}`, wantFailure: "argv[1] contains a NUL byte"},
		{name: "envp not key value", input: `{"type":"command","path":"/bin/true","argv":["true"],"envp":["NOEQUALS"]}`, wantFailure: "not KEY=VALUE"},
		{name: "type key in upper case", input: `{"TYPE":"exit"}`, wantFailure: `unknown field "TYPE"`},
		{name: "mixed case command keys", input: `{"type":"command","PATH":"/bin/true","Argv":["true"]}`, wantFailure: `unknown field "PATH"`},
		{name: "repeated type key", input: `{"type":"exit","type":"command","path":"/bin/true","argv":["true"]}`, wantFailure: `duplicate field "type"`},
		{name: "repeated argv key", input: `{"type":"command","path":"/bin/true","argv":["true"],"argv":["false"]}`, wantFailure: `duplicate field "argv"`},
		{name: "invalid utf-8 in path", input: "{\"type\":\"command\",\"path\":\"/bin/\xfftrue\",\"argv\":[\"true\"]}", wantFailure: "invalid UTF-8"},
		{name: "escaped key spelling counts as type", input: `{"typ\u0065":"reboot"}`, wantFailure: "unknown type"},
		{name: "envp empty key", input: `{"type":"command","path":"/bin/true","argv":["true"],"envp":["=x"]}`, wantFailure: "not KEY=VALUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.input))

			if tt.wantFailure != "" {
				var failure *DecodeFailure
				if !errors.As(err, &failure) {
					t.Fatalf("want *DecodeFailure, got %v", err)
				}
				if !strings.Contains(failure.Reason, tt.wantFailure) {
					t.Errorf("reason %q does not mention %q", failure.Reason, tt.wantFailure)
				}
				if req != nil {
					t.Error("failure should not return a request")
				}
				return
			}

			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, req)
			}
		})
	}
}

func TestDecoderNext(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"command","path":"/bin/true","argv":["true"],"envp":[]}`,
		`not json`,
		`{"type":"exit"}`,
	}, "\n") + "\n"

	dec := NewDecoder(strings.NewReader(input))

	req, err := dec.Next()
	if err != nil || req.Kind != KindCommand {
		t.Fatalf("first record: got %v, %v", req, err)
	}

	_, err = dec.Next()
	var failure *DecodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("second record: want decode failure, got %v", err)
	}

	req, err = dec.Next()
	if err != nil || req.Kind != KindExit {
		t.Fatalf("third record: got %v, %v", req, err)
	}

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF at end of stream, got %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("EOF should be sticky, got %v", err)
	}
}

func TestDecoderPartialTrailingRecord(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"type":"exit"}`))

	req, err := dec.Next()
	if err != nil {
		t.Fatalf("partial record should decode, got %v", err)
	}
	if req.Kind != KindExit {
		t.Errorf("want kind=exit, got %s", req.Kind)
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestDecoderEmptyStream(t *testing.T) {
	dec := NewDecoder(strings.NewReader(""))
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("bad descriptor")
}

func TestDecoderReadError(t *testing.T) {
	dec := NewDecoder(failingReader{})
	_, err := dec.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("want read error, got %v", err)
	}
	var failure *DecodeFailure
	if errors.As(err, &failure) {
		t.Fatal("read error must not look like a decode failure")
	}
}

func TestEncodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		want    string
		wantErr bool
	}{
		{
			name: "exit",
			req:  Exit(),
			want: `{"type":"exit"}` + "\n",
		},
		{
			name: "command with envp",
			req:  Command(RunCommand{Path: "/bin/true", Argv: []string{"true"}, EnvpSet: true}),
			want: `{"type":"command","path":"/bin/true","argv":["true"],"envp":[]}` + "\n",
		},
		{
			name: "command inheriting env",
			req:  Command(RunCommand{Path: "/bin/echo", Argv: []string{"echo", "<&>"}}),
			want: `{"type":"command","path":"/bin/echo","argv":["echo","<&>"]}` + "\n",
		},
		{
			name:    "unknown kind",
			req:     &Request{Kind: "reboot"},
			wantErr: true,
		},
		{
			name:    "command without payload",
			req:     &Request{Kind: KindCommand},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeRequest(&buf, tt.req)

			if (err != nil) != tt.wantErr {
				t.Fatalf("EncodeRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && buf.String() != tt.want {
				t.Errorf("EncodeRequest() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestEncodeThenDecodePreservesEnvpPresence(t *testing.T) {
	var buf bytes.Buffer
	in := Command(RunCommand{Path: "/bin/sh", Argv: []string{"sh", "-c", "env"}, Envp: []string{"ONLY=1"}, EnvpSet: true})
	if err := EncodeRequest(&buf, in); err != nil {
		t.Fatal(err)
	}

	out, err := NewDecoder(&buf).Next()
	if err != nil {
		t.Fatal(err)
	}
	if !out.Command.EnvpSet || len(out.Command.Envp) != 1 || out.Command.Envp[0] != "ONLY=1" {
		t.Errorf("envp lost in transit: %+v", out.Command)
	}
}

func TestRunCommandEnvironment(t *testing.T) {
	inherited := []string{"HOME=/root", "SECRET=1"}

	inherit := RunCommand{Path: "/bin/true", Argv: []string{"true"}}
	if got := inherit.Environment(inherited); len(got) != 2 {
		t.Errorf("absent envp should inherit, got %v", got)
	}

	replace := RunCommand{Path: "/bin/true", Argv: []string{"true"}, EnvpSet: true}
	got := replace.Environment(inherited)
	if got == nil || len(got) != 0 {
		t.Errorf("empty envp should yield empty non-nil env, got %#v", got)
	}
}
