package fileservice

import "testing"

func TestParseDescriptorXML(t *testing.T) {
	xmlBody := []byte(`<file><id>42</id><path>news/today.txt</path><hash>abc123</hash><size>1024</size><block_size>256</block_size></file>`)
	d, err := ParseDescriptorXML(xmlBody)
	if err != nil {
		t.Fatalf("ParseDescriptorXML: %v", err)
	}
	if d.ID != 42 || d.Path != "news/today.txt" || d.Hash != "abc123" || d.Size != 1024 || d.BlockSize != 256 {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if d.FEC != nil {
		t.Fatalf("FEC should be nil when absent, got %+v", d.FEC)
	}
}

func TestParseDescriptorXMLWithFEC(t *testing.T) {
	xmlBody := []byte(`<file><id>1</id><path>a</path><hash>h</hash><size>10</size><block_size>5</block_size><fec>ldpc:k=10,n=14,N1=3,seed=1234</fec></file>`)
	d, err := ParseDescriptorXML(xmlBody)
	if err != nil {
		t.Fatalf("ParseDescriptorXML: %v", err)
	}
	if d.FEC == nil {
		t.Fatal("expected FEC params")
	}
	if d.FEC.K != 10 || d.FEC.N != 14 || d.FEC.N1 != 3 || d.FEC.Seed != 1234 {
		t.Fatalf("unexpected fec params: %+v", d.FEC)
	}
}

func TestParseDescriptorXMLDefaultSeed(t *testing.T) {
	xmlBody := []byte(`<file><id>1</id><path>a</path><hash>h</hash><size>10</size><block_size>5</block_size><fec>ldpc:k=2,n=3,N1=1</fec></file>`)
	d, err := ParseDescriptorXML(xmlBody)
	if err != nil {
		t.Fatalf("ParseDescriptorXML: %v", err)
	}
	if d.FEC.Seed != 1 {
		t.Fatalf("Seed = %d, want default 1", d.FEC.Seed)
	}
}

func TestParseDescriptorPacket(t *testing.T) {
	xmlBody := []byte(`<file><id>7</id><path>p</path><hash>h</hash><size>1</size><block_size>1</block_size></file>`)
	var payload []byte
	cert := []byte("cert-bytes")
	payload = append(payload, byte(len(cert)>>8), byte(len(cert)))
	payload = append(payload, cert...)
	payload = append(payload, make([]byte, signatureLen)...)
	payload = append(payload, xmlBody...)

	d, err := ParseDescriptorPacket(payload)
	if err != nil {
		t.Fatalf("ParseDescriptorPacket: %v", err)
	}
	if d.ID != 7 || d.Path != "p" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}
