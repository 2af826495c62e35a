package adam6000

import (
	"io"
	"log"
	"net"
	"testing"
	"time"

	modbus "github.com/hootrhino/gomodbus"
	modbus_server "github.com/hootrhino/mbserver"
	"github.com/hootrhino/mbserver/store"
)

// startSimulatedModule starts a Modbus TCP server standing in for an ADAM
// module, with sample input data.
func startSimulatedModule(addr string) (*modbus_server.Server, error) {
	server := modbus_server.NewServer(store.NewInMemoryStore(), 1)

	// The pinned mbserver has one logger call without a nil guard, so the
	// server needs a logger to be usable at all.
	server.SetLogger(io.Discard)

	server.SetErrorHandler(func(err error) {
		log.Printf("Modbus server error: %v", err)
	})

	// Sample analog input data
	sampleHoldingRegisters := make([]uint16, 10)
	for i := range sampleHoldingRegisters {
		sampleHoldingRegisters[i] = 0x0FFF
	}
	if err := server.SetHoldingRegisters(sampleHoldingRegisters); err != nil {
		return nil, err
	}

	// Counter reads go to the input register space; seed it so the store
	// does not answer them with an illegal-data-address exception.
	if err := server.SetInputRegisters(make([]uint16, 32)); err != nil {
		return nil, err
	}

	if err := server.Start(addr); err != nil {
		return nil, err
	}
	return server, nil
}

// TestDeviceOverTCP drives a device handle against a simulated module over a
// real TCP connection.
func TestDeviceOverTCP(t *testing.T) {
	addr := "127.0.0.1:15020"
	server, err := startSimulatedModule(addr)
	if err != nil {
		t.Skipf("cannot start simulated module on %s: %v", addr, err)
	}
	defer server.Stop()

	// The server accepts in the background; give it a moment.
	var conn net.Conn
	for i := 0; i < 20; i++ {
		conn, err = net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Skipf("simulated module on %s not reachable: %v", addr, err)
	}
	handler := modbus.NewModbusTCPHandler(conn, 5*time.Second)
	defer conn.Close()

	d, err := NewDeviceWithTransport("ADAM-6052", 1, handler)
	if err != nil {
		t.Fatalf("NewDeviceWithTransport failed: %v", err)
	}

	if err := d.SetDigitalOutput(0, true); err != nil {
		t.Fatalf("SetDigitalOutput failed: %v", err)
	}
	state, err := d.GetDigitalOutput(0)
	if err != nil {
		t.Fatalf("GetDigitalOutput failed: %v", err)
	}
	if !state {
		t.Errorf("Expected output 0 HIGH after set")
	}

	if err := d.SetDigitalOutput(0, false); err != nil {
		t.Fatalf("SetDigitalOutput failed: %v", err)
	}
	state, err = d.GetDigitalOutput(0)
	if err != nil {
		t.Fatalf("GetDigitalOutput failed: %v", err)
	}
	if state {
		t.Errorf("Expected output 0 LOW after clear")
	}

	count, err := d.GetCounter(0)
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	t.Log("GetCounter=", count)
}

// TestConnectLifecycle exercises the dial path of Connect against a local
// listener.
func TestConnectLifecycle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	d, err := NewDevice("ADAM-6017", Config{
		IP:      "127.0.0.1",
		Port:    addr.Port,
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !d.Connected() {
		t.Errorf("Expected handle connected after Connect")
	}
	if err := d.Connect(); err != nil {
		t.Errorf("Connect on a connected handle failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.Connected() {
		t.Errorf("Expected handle disconnected after Close")
	}
}

func TestConnectRefused(t *testing.T) {
	// Grab a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = NewDevice("ADAM-6017", Config{
		IP:      "127.0.0.1",
		Port:    port,
		Timeout: time.Second,
		Connect: true,
	})
	if err == nil {
		t.Fatalf("Expected connect failure")
	}
}
