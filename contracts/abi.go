package contracts

// RegistryABI is the ABI of the collection registry contract.
const RegistryABI = `[
  {"type":"function","name":"registerCollection","stateMutability":"nonpayable",
   "inputs":[{"name":"collectionAddress","type":"address"},{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getAllCollections","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"collectionAddress","type":"address"},{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}]}]},
  {"type":"function","name":"getCollectionsByOwner","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"collectionAddress","type":"address"},{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}]}]},
  {"type":"function","name":"getCollectionMetadata","stateMutability":"view",
   "inputs":[{"name":"collectionAddress","type":"address"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"collectionAddress","type":"address"},{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}]}]},
  {"type":"event","name":"CollectionRegistered","anonymous":false,
   "inputs":[{"name":"collectionAddress","type":"address","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"name","type":"string","indexed":false},{"name":"symbol","type":"string","indexed":false}]}
]`

// AuctionABI is the ABI of the auction house contract.
const AuctionABI = `[
  {"type":"function","name":"createAuction","stateMutability":"nonpayable",
   "inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"startingBid","type":"uint256"},{"name":"duration","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"placeBid","stateMutability":"payable",
   "inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"settleAuction","stateMutability":"nonpayable",
   "inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"getAuction","stateMutability":"view",
   "inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"seller","type":"address"},{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"},
     {"name":"highestBidder","type":"address"},{"name":"highestBid","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"settled","type":"bool"}]}]},
  {"type":"function","name":"getAllActiveAuctions","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"seller","type":"address"},{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"},
     {"name":"highestBidder","type":"address"},{"name":"highestBid","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"settled","type":"bool"}]}]}
]`

// CollectionABI is the ABI of the ERC-721 collection contract.
const CollectionABI = `[
  {"type":"constructor","stateMutability":"nonpayable",
   "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"}]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"totalMinted","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"mintToken","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"metadataURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"getTokensOfOwner","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable",
   "inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
  {"type":"function","name":"isApprovedForAll","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`
