// Package toolbox connects workflow nodes to MCP tool servers. A
// Toolbox aggregates tools from one or more servers behind a flat
// namespace, so a node can describe every available tool to the model
// and dispatch calls without knowing which server owns which tool.
package toolbox
