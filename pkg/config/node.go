// pkg/config/node.go

package config

import (
	"fmt"
	"strings"
)

// NodeType selects a requirement profile. The zero value uses the DEFAULT
// section only.
type NodeType string

const (
	NodeDefault    NodeType = ""
	NodeDesign     NodeType = "DESIGN"
	NodeAutomation NodeType = "AUTOMATION"
	NodeAPI        NodeType = "API"
	NodeGovern     NodeType = "GOVERN"
	NodeDeployer   NodeType = "DEPLOYER"
)

// NodeTypes lists the accepted profiles.
var NodeTypes = []NodeType{NodeDesign, NodeAutomation, NodeAPI, NodeGovern, NodeDeployer}

// ParseNodeType validates a --node value, ignoring case.
func ParseNodeType(s string) (NodeType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NodeDefault, nil
	}
	for _, n := range NodeTypes {
		if strings.EqualFold(s, string(n)) {
			return n, nil
		}
	}
	names := make([]string, len(NodeTypes))
	for i, n := range NodeTypes {
		names[i] = string(n)
	}
	return "", fmt.Errorf("%w %q (valid: %s)", ErrInvalidNodeType, s, strings.Join(names, ", "))
}

// String returns the profile name, DEFAULT for the zero value.
func (n NodeType) String() string {
	if n == NodeDefault {
		return "DEFAULT"
	}
	return string(n)
}
